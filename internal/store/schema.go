package store

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

// Table definitions consumed by ent's migrate engine on Open. Column
// positions are referenced by index below, so append new columns at the end.
var (
	// ConversationsColumns holds the columns for the "conversations" table.
	ConversationsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "user_id", Type: field.TypeString},
		{Name: "thread_id", Type: field.TypeString},
		{Name: "has_wrong", Type: field.TypeBool, Default: false},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "last_activity", Type: field.TypeTime},
	}
	ConversationsTable = &schema.Table{
		Name:       "conversations",
		Columns:    ConversationsColumns,
		PrimaryKey: []*schema.Column{ConversationsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "conversation_thread_id", Unique: true, Columns: []*schema.Column{ConversationsColumns[2]}},
			{Name: "conversation_user_id", Unique: false, Columns: []*schema.Column{ConversationsColumns[1]}},
		},
	}

	// TurnsColumns holds the columns for the "turns" table.
	TurnsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "role", Type: field.TypeString},
		{Name: "content", Type: field.TypeString, Size: 2147483647},
		{Name: "correct", Type: field.TypeBool, Nullable: true},
		{Name: "difficulty", Type: field.TypeString, Default: ""},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "conversation_id", Type: field.TypeInt64},
	}
	TurnsTable = &schema.Table{
		Name:       "turns",
		Columns:    TurnsColumns,
		PrimaryKey: []*schema.Column{TurnsColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "turns_conversations_turns",
				Columns:    []*schema.Column{TurnsColumns[6]},
				RefColumns: []*schema.Column{ConversationsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "turn_conversation_id", Unique: false, Columns: []*schema.Column{TurnsColumns[6]}},
		},
	}

	// ExpectedAnswersColumns holds the columns for the "expected_answers" table.
	ExpectedAnswersColumns = []*schema.Column{
		{Name: "thread_id", Type: field.TypeString},
		{Name: "question", Type: field.TypeString, Size: 2147483647},
		{Name: "answer", Type: field.TypeString, Default: ""},
		{Name: "hint", Type: field.TypeString, Default: ""},
		{Name: "difficulty", Type: field.TypeString, Default: ""},
		{Name: "updated_at", Type: field.TypeTime},
	}
	ExpectedAnswersTable = &schema.Table{
		Name:       "expected_answers",
		Columns:    ExpectedAnswersColumns,
		PrimaryKey: []*schema.Column{ExpectedAnswersColumns[0]},
	}

	// StoryGraphsColumns holds the columns for the "story_graphs" table.
	StoryGraphsColumns = []*schema.Column{
		{Name: "thread_id", Type: field.TypeString},
		{Name: "data", Type: field.TypeString, Size: 2147483647},
		{Name: "updated_at", Type: field.TypeTime},
	}
	StoryGraphsTable = &schema.Table{
		Name:       "story_graphs",
		Columns:    StoryGraphsColumns,
		PrimaryKey: []*schema.Column{StoryGraphsColumns[0]},
	}

	// InstructionsColumns holds the columns for the "instructions" table.
	InstructionsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "name", Type: field.TypeString},
		{Name: "value", Type: field.TypeString, Size: 2147483647},
		{Name: "is_active", Type: field.TypeBool, Default: true},
		{Name: "updated_at", Type: field.TypeTime},
	}
	InstructionsTable = &schema.Table{
		Name:       "instructions",
		Columns:    InstructionsColumns,
		PrimaryKey: []*schema.Column{InstructionsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "instruction_name", Unique: true, Columns: []*schema.Column{InstructionsColumns[1]}},
		},
	}

	// DocumentsColumns holds the columns for the "documents" table.
	DocumentsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "title", Type: field.TypeString},
		{Name: "summary", Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: "is_indexed", Type: field.TypeBool, Default: false},
		{Name: "is_active", Type: field.TypeBool, Default: false},
		{Name: "created_at", Type: field.TypeTime},
	}
	DocumentsTable = &schema.Table{
		Name:       "documents",
		Columns:    DocumentsColumns,
		PrimaryKey: []*schema.Column{DocumentsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "document_title", Unique: true, Columns: []*schema.Column{DocumentsColumns[1]}},
		},
	}

	// AssistantsColumns holds the columns for the "assistants" table.
	AssistantsColumns = []*schema.Column{
		{Name: "user_id", Type: field.TypeString},
		{Name: "assistant_id", Type: field.TypeString},
		{Name: "created_at", Type: field.TypeTime},
	}
	AssistantsTable = &schema.Table{
		Name:       "assistants",
		Columns:    AssistantsColumns,
		PrimaryKey: []*schema.Column{AssistantsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "assistant_assistant_id", Unique: true, Columns: []*schema.Column{AssistantsColumns[1]}},
		},
	}

	// ThreadsColumns holds the columns for the "threads" table.
	ThreadsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeString},
		{Name: "assistant_id", Type: field.TypeString},
		{Name: "created_at", Type: field.TypeTime},
	}
	ThreadsTable = &schema.Table{
		Name:       "threads",
		Columns:    ThreadsColumns,
		PrimaryKey: []*schema.Column{ThreadsColumns[0]},
	}

	// ThreadMessagesColumns holds the columns for the "thread_messages" table.
	ThreadMessagesColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "role", Type: field.TypeString},
		{Name: "content", Type: field.TypeString, Size: 2147483647},
		{Name: "created_at", Type: field.TypeTime},
		{Name: "thread_id", Type: field.TypeString},
	}
	ThreadMessagesTable = &schema.Table{
		Name:       "thread_messages",
		Columns:    ThreadMessagesColumns,
		PrimaryKey: []*schema.Column{ThreadMessagesColumns[0]},
		ForeignKeys: []*schema.ForeignKey{
			{
				Symbol:     "thread_messages_threads_messages",
				Columns:    []*schema.Column{ThreadMessagesColumns[4]},
				RefColumns: []*schema.Column{ThreadsColumns[0]},
				OnDelete:   schema.Cascade,
			},
		},
		Indexes: []*schema.Index{
			{Name: "thread_message_thread_id", Unique: false, Columns: []*schema.Column{ThreadMessagesColumns[4]}},
		},
	}

	// LlmRequestEventsColumns holds the columns for the "llm_request_events" table.
	LlmRequestEventsColumns = []*schema.Column{
		{Name: "id", Type: field.TypeInt64, Increment: true},
		{Name: "sequence", Type: field.TypeInt64, Unique: true},
		{Name: "timestamp", Type: field.TypeTime},
		{Name: "provider", Type: field.TypeString},
		{Name: "model", Type: field.TypeString},
		{Name: "purpose", Type: field.TypeString},
		{Name: "input_tokens", Type: field.TypeInt, Default: 0},
		{Name: "output_tokens", Type: field.TypeInt, Default: 0},
		{Name: "latency_ms", Type: field.TypeInt64, Default: 0},
		{Name: "success", Type: field.TypeBool},
		{Name: "error_message", Type: field.TypeString, Default: ""},
		{Name: "request_body", Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: "response_body", Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: "thread_id", Type: field.TypeString, Default: ""},
		{Name: "user_id", Type: field.TypeString, Default: ""},
	}
	LlmRequestEventsTable = &schema.Table{
		Name:       "llm_request_events",
		Columns:    LlmRequestEventsColumns,
		PrimaryKey: []*schema.Column{LlmRequestEventsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "llmrequestevent_purpose", Unique: false, Columns: []*schema.Column{LlmRequestEventsColumns[5]}},
			{Name: "llmrequestevent_timestamp", Unique: false, Columns: []*schema.Column{LlmRequestEventsColumns[2]}},
			{Name: "llmrequestevent_thread_id", Unique: false, Columns: []*schema.Column{LlmRequestEventsColumns[13]}},
		},
	}

	// Tables holds all the tables in the schema.
	Tables = []*schema.Table{
		ConversationsTable,
		TurnsTable,
		ExpectedAnswersTable,
		StoryGraphsTable,
		InstructionsTable,
		DocumentsTable,
		AssistantsTable,
		ThreadsTable,
		ThreadMessagesTable,
		LlmRequestEventsTable,
	}
)

func init() {
	TurnsTable.ForeignKeys[0].RefTable = ConversationsTable
	ThreadMessagesTable.ForeignKeys[0].RefTable = ThreadsTable
}
