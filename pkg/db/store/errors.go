package store

import "context"

const createErrorEventSQL = `
INSERT INTO error_events (source_component, severity, message, stack_trace, context_data, created_at, resolved)
VALUES ($1, $2, $3, $4, $5, now(), false)
RETURNING id, source_component, severity, message, stack_trace, context_data, created_at, resolved
`

func (q *Queries) CreateErrorEvent(ctx context.Context, arg CreateErrorEventParams) (ErrorEvent, error) {
	row := q.db.QueryRow(ctx, createErrorEventSQL,
		arg.SourceComponent, arg.Severity, arg.Message, arg.StackTrace, arg.ContextData)
	var e ErrorEvent
	err := row.Scan(&e.ID, &e.SourceComponent, &e.Severity, &e.Message, &e.StackTrace, &e.ContextData, &e.CreatedAt, &e.Resolved)
	return e, err
}
