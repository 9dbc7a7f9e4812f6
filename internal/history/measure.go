package history

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/ALT-F4-LLC/rewind/internal/model"
)

const msPerDay = int64(24 * time.Hour / time.Millisecond)

// emptyMarker is how the activity log writes a cleared single value.
const emptyMarker = "<empty>"

// StatusFix is the status and major status assumed for a record whose status
// cannot be mapped.
type StatusFix struct {
	Status string
	Major  string
}

// StatusTable maps issue statuses to major statuses.
type StatusTable struct {
	Major map[string]string

	// Exceptions holds fixed statuses for known broken records, by issue id.
	Exceptions map[int64]StatusFix

	// Reopened is the status counted by times_reopened.
	Reopened string

	// Open is the major status accumulated into days_open_accumulated.
	Open string
}

// DefaultStatusTable returns the standard workflow mapping.
func DefaultStatusTable() *StatusTable {
	return &StatusTable{
		Major: map[string]string{
			model.StatusUnconfirmed: model.MajorStatusOpen,
			model.StatusNew:         model.MajorStatusOpen,
			model.StatusAssigned:    model.MajorStatusOpen,
			model.StatusReopened:    model.MajorStatusOpen,
			model.StatusResolved:    model.MajorStatusClosed,
			model.StatusVerified:    model.MajorStatusClosed,
			model.StatusClosed:      model.MajorStatusClosed,
		},
		Exceptions: map[int64]StatusFix{
			11720: {Status: model.StatusNew, Major: model.MajorStatusOpen},
			11721: {Status: model.StatusNew, Major: model.MajorStatusOpen},
			20015: {Status: model.StatusNew, Major: model.MajorStatusOpen},
			19936: {Status: model.StatusClosed, Major: model.MajorStatusClosed},
			19952: {Status: model.StatusClosed, Major: model.MajorStatusClosed},
		},
		Reopened: model.StatusReopened,
		Open:     model.MajorStatusOpen,
	}
}

// Resolve returns the effective status and major status of an issue version.
func (t *StatusTable) Resolve(id int64, status string) (string, string, error) {
	if major, ok := t.Major[status]; ok {
		return status, major, nil
	}
	if fix, ok := t.Exceptions[id]; ok {
		return fix.Status, fix.Major, nil
	}
	return "", "", fmt.Errorf("%w: %q", ErrUnmappedStatus, status)
}

// IssueMeasurer computes the derived facets and measurements of issues.
type IssueMeasurer struct {
	Statuses *StatusTable
}

// Measure walks the versions oldest first. Versions ending after now are
// treated as still open: their time in status is unknown.
func (m IssueMeasurer) Measure(issue *model.Issue, now time.Time) error {
	statuses := m.Statuses
	if statuses == nil {
		statuses = DefaultStatusTable()
	}

	tracked := append(model.IssueSchema.Sourced(), model.IssueStatusWhiteboardItems)

	var previous map[model.IssueFacet]string
	var prevStatus, prevMajor, previousStatus, previousMajor string
	var msInStatus, msInMajor, msOpen, timesReopened int64
	statusChanged, majorChanged := issue.CreatedAt, issue.CreatedAt

	for i, v := range issue.Versions() {
		number := int64(i + 1)
		latest := v.To.After(now)

		status, major, err := statuses.Resolve(issue.ID, v.Facets[model.IssueStatus])
		if err != nil {
			return fmt.Errorf("version %d: %w", number, err)
		}

		daysInPreviousStatus, daysInPreviousMajor := int64(-1), int64(-1)
		if number > 1 && status != prevStatus {
			previousStatus = prevStatus
			daysInPreviousStatus = msInStatus / msPerDay
			msInStatus = 0
			statusChanged = v.From
			if major != prevMajor {
				previousMajor = prevMajor
				if status == statuses.Reopened {
					timesReopened++
				}
				daysInPreviousMajor = msInMajor / msPerDay
				msInMajor = 0
				majorChanged = v.From
			}
		}

		setFacet(v.Facets, model.IssuePreviousStatus, previousStatus)
		setFacet(v.Facets, model.IssuePreviousMajorStatus, previousMajor)
		v.Facets[model.IssueMajorStatus] = major
		v.Facets[model.IssueStatusLastChangedDate] = epochMillis(statusChanged)
		v.Facets[model.IssueMajorStatusLastChangedDate] = epochMillis(majorChanged)
		setFacet(v.Facets, model.IssueStatusWhiteboardItems,
			model.JoinEscapedCSV(WhiteboardItems(v.Facets[model.IssueStatusWhiteboard])))

		changes, modified := diffFacets(tracked, previous, v.Facets, model.IssueStatusWhiteboardItems)
		setFacet(v.Facets, model.IssueChanges, changes)
		setFacet(v.Facets, model.IssueModifiedFields, modified)

		duration := v.To.UnixMilli() - v.From.UnixMilli()
		msInStatus += duration
		msInMajor += duration
		if !latest && major == statuses.Open {
			msOpen += duration
		}

		v.Measurements[model.IssueDaysInPreviousStatus] = daysInPreviousStatus
		v.Measurements[model.IssueDaysInPreviousMajorStatus] = daysInPreviousMajor
		v.Measurements[model.IssueDaysInStatus] = daysUnlessLatest(msInStatus, latest)
		v.Measurements[model.IssueDaysInMajorStatus] = daysUnlessLatest(msInMajor, latest)
		v.Measurements[model.IssueDaysOpenAccumulated] = msOpen / msPerDay
		v.Measurements[model.IssueTimesReopened] = timesReopened
		v.Measurements[model.IssueNumber] = number

		previous = v.Facets
		prevStatus, prevMajor = status, major
	}
	return nil
}

// AttachmentMeasurer computes the derived facets and measurements of
// attachments.
type AttachmentMeasurer struct{}

func (AttachmentMeasurer) Measure(att *model.Attachment, _ time.Time) error {
	tracked := model.AttachmentSchema.Sourced()
	var previous map[model.AttachmentFacet]string
	for i, v := range att.Versions() {
		changes, modified := diffFacets(tracked, previous, v.Facets)
		setFacet(v.Facets, model.AttachmentChanges, changes)
		setFacet(v.Facets, model.AttachmentModifiedFields, modified)
		v.Measurements[model.AttachmentNumber] = int64(i + 1)
		previous = v.Facets
	}
	return nil
}

// diffFacets compares two facet maps. It returns the list of changes, with
// "-name=item" and "+name=item" entries for multivalue facets and "name=old"
// for single values, and the names of the modified facets. Facets listed in
// itemsOnly contribute changes but are not reported as modified.
func diffFacets[F model.Facet](tracked []F, from, to map[F]string, itemsOnly ...F) (string, string) {
	var changes, modified []string
	for _, f := range tracked {
		before, after := from[f], to[f]
		if before == after {
			continue
		}
		name := f.Name()
		if !slices.Contains(itemsOnly, f) {
			modified = append(modified, name)
		}
		if f.Multivalue() {
			beforeItems := model.SplitEscapedCSV(before)
			afterItems := model.SplitEscapedCSV(after)
			for _, item := range beforeItems {
				if !slices.Contains(afterItems, item) {
					changes = append(changes, "-"+name+"="+item)
				}
			}
			for _, item := range afterItems {
				if !slices.Contains(beforeItems, item) {
					changes = append(changes, "+"+name+"="+item)
				}
			}
			continue
		}
		if before != "" && before != emptyMarker {
			changes = append(changes, name+"="+before)
		}
	}
	return model.JoinEscapedCSV(changes), model.JoinCSV(modified)
}

func setFacet[F comparable](facets map[F]string, f F, value string) {
	if value == "" {
		delete(facets, f)
		return
	}
	facets[f] = value
}

func daysUnlessLatest(ms int64, latest bool) int64 {
	if latest {
		return -1
	}
	return ms / msPerDay
}

func epochMillis(t time.Time) string {
	return strconv.FormatInt(t.UnixMilli(), 10)
}
