package records

// Event topics published by the records plugin.
const (
	EventRecordCreated = "records.record.created"
	EventRecordUpdated = "records.record.updated"
	EventRecordDeleted = "records.record.deleted"
)
