package models

// Task is a row of public.tasks whose address still has no coordinates.
type Task struct {
	ID      int    // task_id
	Address string // free-text address as entered, without the configured prefix
}
