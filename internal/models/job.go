// Package models holds the syncable entity types shared by the local store,
// the remote client, and the sync engine.
package models

import "time"

// Job statuses move through a simple pipeline; the zero value is Inquiry.
const (
	JobStatusInquiry   = "inquiry"
	JobStatusBooked    = "booked"
	JobStatusShot      = "shot"
	JobStatusDelivered = "delivered"
	JobStatusPaid      = "paid"
)

// Job is one photography booking. LocalID is the store-assigned primary key;
// RemoteID is the provider-assigned key, empty until the job has been pushed.
type Job struct {
	LocalID    string
	RemoteID   string
	ClientName string
	Title      string
	Location   string
	ShootDate  time.Time
	FeeCents   int64
	Notes      string
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// GetRemoteID returns the provider-assigned key, empty when local-only.
func (j *Job) GetRemoteID() string { return j.RemoteID }

// SetRemoteID records the provider-assigned key after a push.
func (j *Job) SetRemoteID(id string) { j.RemoteID = id }

// GetUpdatedAt returns the last-modified timestamp used for divergence
// detection.
func (j *Job) GetUpdatedAt() time.Time { return j.UpdatedAt }

// JobType is a reusable shoot category (wedding, portrait, ...) with its
// default fee.
type JobType struct {
	LocalID   string
	RemoteID  string
	Name      string
	BaseFee   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t *JobType) GetRemoteID() string      { return t.RemoteID }
func (t *JobType) SetRemoteID(id string)    { t.RemoteID = id }
func (t *JobType) GetUpdatedAt() time.Time  { return t.UpdatedAt }
