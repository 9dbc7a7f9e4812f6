package model

// AttachmentFacet enumerates the versioned fields of an attachment.
type AttachmentFacet uint8

const (
	AttachmentIsObsolete AttachmentFacet = iota
	AttachmentIsPatch
	AttachmentIsURL
	AttachmentMimeType
	AttachmentRequests

	AttachmentChanges
	AttachmentModifiedFields

	attachmentFacetCount
)

var attachmentFacetInfo = [attachmentFacetCount]fieldInfo{
	AttachmentIsObsolete: {name: "is_obsolete"},
	AttachmentIsPatch:    {name: "is_patch"},
	AttachmentIsURL:      {name: "is_url"},
	AttachmentMimeType:   {name: "mimetype"},
	AttachmentRequests:   {name: "requests", multivalue: true},

	AttachmentChanges:        {name: "changes", computed: true, multivalue: true},
	AttachmentModifiedFields: {name: "modified_fields", computed: true, multivalue: true},
}

func (f AttachmentFacet) Name() string     { return attachmentFacetInfo[f].name }
func (f AttachmentFacet) Computed() bool   { return attachmentFacetInfo[f].computed }
func (f AttachmentFacet) Multivalue() bool { return attachmentFacetInfo[f].multivalue }
func (f AttachmentFacet) String() string   { return f.Name() }

// AttachmentMeasure enumerates the computed statistics of an attachment version.
type AttachmentMeasure uint8

const (
	AttachmentNumber AttachmentMeasure = iota

	attachmentMeasureCount
)

var attachmentMeasureInfo = [attachmentMeasureCount]fieldInfo{
	AttachmentNumber: {name: "number"},
}

func (m AttachmentMeasure) Name() string   { return attachmentMeasureInfo[m].name }
func (m AttachmentMeasure) String() string { return m.Name() }

// Attachment is a file attached to an issue, with its history. Its ParentID
// is the issue id.
type Attachment = Entity[AttachmentFacet, AttachmentMeasure]

// AttachmentVersion is one version of an attachment.
type AttachmentVersion = Version[AttachmentFacet, AttachmentMeasure]

// AttachmentActivity is a change to an attachment.
type AttachmentActivity = Activity[AttachmentFacet]

// AttachmentSchema describes attachments. Their requests keep the requestee.
var AttachmentSchema = &Schema[AttachmentFacet, AttachmentMeasure]{
	Kind:         KindAttachment,
	Facets:       enumerate[AttachmentFacet](attachmentFacetCount),
	Measurements: enumerate[AttachmentMeasure](attachmentMeasureCount),
	Flags:        AttachmentRequests,
	Requestees:   true,
}
