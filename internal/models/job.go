package models

import (
	"time"
)

// Channel is an outbound delivery channel.
type Channel string

// Delivery channels.
const (
	ChannelWhatsApp Channel = "WHATSAPP"
	ChannelEmail    Channel = "EMAIL"
	ChannelSMS      Channel = "SMS"
	ChannelInApp    Channel = "IN_APP"
)

// KnownChannel reports whether c is one of the declared channels.
func KnownChannel(c Channel) bool {
	switch c {
	case ChannelWhatsApp, ChannelEmail, ChannelSMS, ChannelInApp:
		return true
	}
	return false
}

// JobStatus is the lifecycle state of a reminder job.
type JobStatus string

// Job statuses. SENT, FAILED, EXHAUSTED and CANCELLED are terminal; SENDING
// marks a leased job mid-dispatch.
const (
	JobQueued    JobStatus = "QUEUED"
	JobSending   JobStatus = "SENDING"
	JobSent      JobStatus = "SENT"
	JobFailed    JobStatus = "FAILED"
	JobExhausted JobStatus = "EXHAUSTED"
	JobCancelled JobStatus = "CANCELLED"
)

// TerminalJobStatus reports whether s permits no further mutation.
func TerminalJobStatus(s JobStatus) bool {
	switch s {
	case JobSent, JobFailed, JobExhausted, JobCancelled:
		return true
	}
	return false
}

// ReminderJob is one concrete, time-stamped outbound send. Created by rule
// evaluation or SLA events; mutated only by the reminder scheduler.
// Invariant: Attempts never exceeds MaxRetries.
type ReminderJob struct {
	ID           string
	EntityID     string
	RuleID       string
	Channel      Channel
	TemplateName string
	Recipient    string
	Payload      map[string]string
	ScheduledAt  time.Time
	Status       JobStatus
	Attempts     int
	MaxRetries   int
	LastError    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
