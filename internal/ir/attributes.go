package ir

// Class names used by the release step.
const (
	ClassDatabaseObject   = "DatabaseObject"
	ClassEvent            = "Event"
	ClassPathway          = "Pathway"
	ClassPhysicalEntity   = "PhysicalEntity"
	ClassStableIdentifier = "StableIdentifier"
	ClassInstanceEdit     = "InstanceEdit"
	ClassPerson           = "Person"
	ClassUpdateTracker    = "UpdateTracker"
)

// Attribute names used by the release step.
const (
	AttrDisplayName       = "_displayName"
	AttrModified          = "modified"
	AttrCreated           = "created"
	AttrRevised           = "revised"
	AttrReviewed          = "reviewed"
	AttrReleaseStatus     = "releaseStatus"
	AttrHasEvent          = "hasEvent"
	AttrStableIdentifier  = "stableIdentifier"
	AttrIdentifier        = "identifier"
	AttrIdentifierVersion = "identifierVersion"
	AttrAuthor            = "author"
	AttrDateTime          = "dateTime"
	AttrNote              = "note"
	AttrUpdatedInstance   = "updatedInstance"
	AttrSurname           = "surname"
	AttrFirstname         = "firstname"
	AttrInitial           = "initial"
)

// ReleaseStatusUpdated marks an instance as updated during the current release.
const ReleaseStatusUpdated = "UPDATED"
