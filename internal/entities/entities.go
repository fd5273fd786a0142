package entities

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// AnonymousEmailDomain is the reserved domain for anonymous-session users.
// Such users have no real credentials; their email is synthesized from the
// session identifier that first created them.
const AnonymousEmailDomain = "anonymous.local"

type User struct {
	ID           string    `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	Email        string    `gorm:"uniqueIndex;size:255" bson:"email" json:"email"`
	Username     string    `gorm:"uniqueIndex;size:100" bson:"username" json:"username"`
	PasswordHash string    `gorm:"size:100" bson:"password_hash" json:"-"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"`
}

// AnonymousEmail builds the synthetic email for an anonymous session.
func AnonymousEmail(sessionID string) string {
	return fmt.Sprintf("anon-%s@%s", sessionID, AnonymousEmailDomain)
}

// IsAnonymous reports whether the user was created for an anonymous session.
func (u *User) IsAnonymous() bool {
	return strings.HasPrefix(u.Email, "anon-") && strings.HasSuffix(u.Email, "@"+AnonymousEmailDomain)
}

type Category struct {
	ID        string    `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	UserID    string    `gorm:"index:idx_user_category_name,unique;size:36" bson:"user_id" json:"user_id"`
	Name      string    `gorm:"index:idx_user_category_name,unique;size:100" bson:"name" json:"name"`
	Color     string    `gorm:"size:10" bson:"color,omitempty" json:"color,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// TimeEntry is a single tracked activity. EndTime == nil means the entry is
// still running; at most one such entry exists per user.
type TimeEntry struct {
	ID               string     `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	UserID           string     `gorm:"index;size:36" bson:"user_id" json:"user_id"`
	CategoryID       string     `gorm:"index;size:36" bson:"category_id" json:"category_id"`
	TaskName         string     `gorm:"index;size:255" bson:"task_name,omitempty" json:"task_name,omitempty"`
	StartTime        time.Time  `gorm:"index" bson:"start_time" json:"start_time"`
	EndTime          *time.Time `gorm:"index" bson:"end_time" json:"end_time"`
	ScheduledEndTime *time.Time `bson:"scheduled_end_time,omitempty" json:"scheduled_end_time,omitempty"`
	DurationMinutes  *int       `bson:"duration_minutes" json:"duration_minutes"`
	CreatedAt        time.Time  `bson:"created_at" json:"created_at"`
}

// Active reports whether the entry is still running.
func (e *TimeEntry) Active() bool {
	return e.EndTime == nil
}

// ElapsedMinutes computes the derived duration between two instants,
// rounded to the nearest minute.
func ElapsedMinutes(start, end time.Time) int {
	ms := end.Sub(start).Milliseconds()
	return int(math.Round(float64(ms) / 60000))
}

type RefreshToken struct {
	Token     string    `gorm:"primaryKey;size:64" bson:"_id" json:"token"`
	UserID    string    `gorm:"index;size:36" bson:"user_id" json:"user_id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// PasswordResetToken holds the single current reset token for a user.
// Issuing a new one replaces the previous row.
type PasswordResetToken struct {
	UserID    string    `gorm:"primaryKey;size:36" bson:"_id" json:"user_id"`
	Token     string    `gorm:"uniqueIndex;size:64" bson:"token" json:"token"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

type UserSettings struct {
	UserID    string    `gorm:"primaryKey;size:36" bson:"_id" json:"user_id"`
	Timezone  string    `gorm:"size:64" bson:"timezone" json:"timezone"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
