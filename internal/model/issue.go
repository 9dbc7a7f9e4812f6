package model

// IssueFacet enumerates the versioned fields of an issue.
type IssueFacet uint8

const (
	IssueAssignedTo IssueFacet = iota
	IssueComponent
	IssueFlags
	IssueKeywords
	IssueOpSys
	IssuePriority
	IssueProduct
	IssueResolution
	IssueSeverity
	IssueStatus
	IssueStatusWhiteboard
	IssueTargetMilestone
	IssueProductVersion

	IssueChanges
	IssueMajorStatus
	IssueMajorStatusLastChangedDate
	IssueModifiedFields
	IssuePreviousMajorStatus
	IssuePreviousStatus
	IssueStatusLastChangedDate
	IssueStatusWhiteboardItems

	issueFacetCount
)

var issueFacetInfo = [issueFacetCount]fieldInfo{
	IssueAssignedTo:       {name: "assigned_to"},
	IssueComponent:        {name: "component"},
	IssueFlags:            {name: "flags", multivalue: true},
	IssueKeywords:         {name: "keywords", multivalue: true},
	IssueOpSys:            {name: "op_sys"},
	IssuePriority:         {name: "priority"},
	IssueProduct:          {name: "product"},
	IssueResolution:       {name: "resolution"},
	IssueSeverity:         {name: "severity"},
	IssueStatus:           {name: "status"},
	IssueStatusWhiteboard: {name: "status_whiteboard"},
	IssueTargetMilestone:  {name: "target_milestone"},
	IssueProductVersion:   {name: "version"},

	IssueChanges:                    {name: "changes", computed: true, multivalue: true},
	IssueMajorStatus:                {name: "major_status", computed: true},
	IssueMajorStatusLastChangedDate: {name: "major_status_last_changed_date", computed: true},
	IssueModifiedFields:             {name: "modified_fields", computed: true, multivalue: true},
	IssuePreviousMajorStatus:        {name: "previous_major_status", computed: true},
	IssuePreviousStatus:             {name: "previous_status", computed: true},
	IssueStatusLastChangedDate:      {name: "status_last_changed_date", computed: true},
	IssueStatusWhiteboardItems:      {name: "status_whiteboard_items", computed: true, multivalue: true},
}

func (f IssueFacet) Name() string     { return issueFacetInfo[f].name }
func (f IssueFacet) Computed() bool   { return issueFacetInfo[f].computed }
func (f IssueFacet) Multivalue() bool { return issueFacetInfo[f].multivalue }
func (f IssueFacet) String() string   { return f.Name() }

// IssueMeasure enumerates the computed statistics of an issue version.
type IssueMeasure uint8

const (
	IssueDaysInMajorStatus IssueMeasure = iota
	IssueDaysInStatus
	IssueDaysInPreviousMajorStatus
	IssueDaysInPreviousStatus
	IssueDaysOpenAccumulated
	IssueTimesReopened
	IssueNumber

	issueMeasureCount
)

var issueMeasureInfo = [issueMeasureCount]fieldInfo{
	IssueDaysInMajorStatus:         {name: "days_in_major_status"},
	IssueDaysInStatus:              {name: "days_in_status"},
	IssueDaysInPreviousMajorStatus: {name: "days_in_previous_major_status"},
	IssueDaysInPreviousStatus:      {name: "days_in_previous_status"},
	IssueDaysOpenAccumulated:       {name: "days_open_accumulated"},
	IssueTimesReopened:             {name: "times_reopened"},
	IssueNumber:                    {name: "number"},
}

func (m IssueMeasure) Name() string   { return issueMeasureInfo[m].name }
func (m IssueMeasure) String() string { return m.Name() }

// Issue is a tracked issue with its history.
type Issue = Entity[IssueFacet, IssueMeasure]

// IssueVersion is one version of an issue.
type IssueVersion = Version[IssueFacet, IssueMeasure]

// IssueActivity is a change to an issue.
type IssueActivity = Activity[IssueFacet]

// IssueSchema describes issues.
var IssueSchema = &Schema[IssueFacet, IssueMeasure]{
	Kind:         KindIssue,
	Facets:       enumerate[IssueFacet](issueFacetCount),
	Measurements: enumerate[IssueMeasure](issueMeasureCount),
	Flags:        IssueFlags,
}

// Issue statuses known to the default major status table.
const (
	StatusUnconfirmed = "UNCONFIRMED"
	StatusNew         = "NEW"
	StatusAssigned    = "ASSIGNED"
	StatusReopened    = "REOPENED"
	StatusResolved    = "RESOLVED"
	StatusVerified    = "VERIFIED"
	StatusClosed      = "CLOSED"
)

// Major statuses.
const (
	MajorStatusOpen   = "OPEN"
	MajorStatusClosed = "CLOSED"
)

func enumerate[E ~uint8](count E) []E {
	out := make([]E, count)
	for i := range out {
		out[i] = E(i)
	}
	return out
}
