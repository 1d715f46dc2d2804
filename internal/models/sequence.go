package models

// Sequence is a named monotonically increasing counter.
type Sequence struct {
	Name  string `gorm:"primaryKey;type:varchar(64)"` // Sequence name.
	Value int64  `gorm:"not null;default:0"`          // Last allocated value.
}
