package models

import "time"

// SliderSubmission is one recorded questionnaire answer. Rows are append-only:
// nothing in this service updates or deletes them after insert.
type SliderSubmission struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SessionID    string    `gorm:"size:128;not null;index:idx_slider_submissions_session" json:"sessionId"`
	QuestionID   string    `gorm:"size:128;not null" json:"questionId"`
	QuestionText *string   `gorm:"type:text" json:"questionText,omitempty"`
	Value        float64   `gorm:"not null" json:"value"`
	RecordedAt   time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"recordedAt"`
}

// TableName keeps the table aligned with the session index name.
func (SliderSubmission) TableName() string {
	return "slider_submissions"
}
