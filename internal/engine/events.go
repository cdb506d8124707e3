package engine

import "fmt"

// Event is a committed mutation in the CRUD backend that every
// notification subscriber should hear about.
type Event interface {
	Message() string
}

type SeriesCreated struct {
	Title string `json:"title"`
}

func (e SeriesCreated) Message() string {
	return fmt.Sprintf("🎬 New Dizi added: %s is now live on DiziDünya!", e.Title)
}

type CommunityCreated struct {
	SeriesTitle string `json:"series_title"`
	Language    string `json:"language"`
}

func (e CommunityCreated) Message() string {
	return fmt.Sprintf("💬 New community opened for %s (%s)!", e.SeriesTitle, e.Language)
}

type MemberJoined struct {
	Username    string `json:"username"`
	SeriesTitle string `json:"series_title"`
}

func (e MemberJoined) Message() string {
	return fmt.Sprintf("👥 %s joined %s community!", e.Username, e.SeriesTitle)
}

type MemberLeft struct {
	Username    string `json:"username"`
	SeriesTitle string `json:"series_title"`
}

func (e MemberLeft) Message() string {
	return fmt.Sprintf("👋 %s left %s community.", e.Username, e.SeriesTitle)
}

type CommunityDeleted struct {
	SeriesTitle string `json:"series_title"`
}

func (e CommunityDeleted) Message() string {
	return fmt.Sprintf("🗑 %s community deleted by admin.", e.SeriesTitle)
}

// Broadcast carries a free-form message for all subscribers.
type Broadcast struct {
	Text string `json:"message"`
}

func (e Broadcast) Message() string { return e.Text }

// UserNotification is addressed to the notification streams of one user.
type UserNotification struct {
	UserID int64  `json:"user_id"`
	Text   string `json:"message"`
}

func (e UserNotification) Message() string { return e.Text }
