package models

import "time"

const (
	ColumnTodo  = "To Do"
	ColumnDoing = "Doing"
	ColumnDone  = "Done"
)

func ValidColumn(column string) bool {
	switch column {
	case ColumnTodo, ColumnDoing, ColumnDone:
		return true
	}
	return false
}

type Task struct {
	ID          int64
	UserID      int64
	Title       string
	Description *string
	Column      string
	Completed   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
