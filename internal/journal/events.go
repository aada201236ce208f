package journal

// Event topics consumed by the journal module from other modules.
const (
	TopicRecordCreated       = "records.record.created"
	TopicRecordUpdated       = "records.record.updated"
	TopicRecordDeleted       = "records.record.deleted"
	TopicGenerationCompleted = "llm.generation.completed"
)
