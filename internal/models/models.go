package models

import (
	"slices"
	"time"
)

const DefaultProfilePicture = "default-avatar.png"

type User struct {
	ID             string    `json:"id" bson:"_id"`
	Name           string    `json:"name" bson:"name"`
	Email          string    `json:"email" bson:"email"`
	PasswordHash   string    `json:"-" bson:"password_hash"`
	Role           Role      `json:"role" bson:"role"`
	Department     string    `json:"department,omitempty" bson:"department,omitempty"`
	Bio            string    `json:"bio,omitempty" bson:"bio,omitempty"`
	ProfilePicture string    `json:"profilePicture" bson:"profile_picture"`
	CreatedAt      time.Time `json:"createdAt" bson:"created_at"`
}

type Project struct {
	ID          string        `json:"id" bson:"_id"`
	Name        string        `json:"name" bson:"name"`
	Description string        `json:"description" bson:"description"`
	ManagerID   string        `json:"manager" bson:"manager"`
	Team        []string      `json:"team" bson:"team"`
	Status      ProjectStatus `json:"status" bson:"status"`
	StartDate   time.Time     `json:"startDate" bson:"start_date"`
	EndDate     *time.Time    `json:"endDate,omitempty" bson:"end_date,omitempty"`
	CreatedAt   time.Time     `json:"createdAt" bson:"created_at"`

	// Progress is derived on read from the project's tasks.
	Progress int `json:"progress" bson:"-"`
}

func (p *Project) IsManager(userID string) bool {
	return userID != "" && p.ManagerID == userID
}

func (p *Project) IsMember(userID string) bool {
	return userID != "" && slices.Contains(p.Team, userID)
}

// IsParticipant reports whether the user manages or belongs to the project.
func (p *Project) IsParticipant(userID string) bool {
	return p.IsManager(userID) || p.IsMember(userID)
}

type Task struct {
	ID             string     `json:"id" bson:"_id"`
	Title          string     `json:"title" bson:"title"`
	Description    string     `json:"description" bson:"description"`
	ProjectID      string     `json:"project" bson:"project"`
	AssignedTo     string     `json:"assignedTo,omitempty" bson:"assigned_to,omitempty"`
	CreatedBy      string     `json:"createdBy" bson:"created_by"`
	Status         TaskStatus `json:"status" bson:"status"`
	Priority       Priority   `json:"priority" bson:"priority"`
	DueDate        *time.Time `json:"dueDate,omitempty" bson:"due_date,omitempty"`
	EstimatedHours float64    `json:"estimatedHours" bson:"estimated_hours"`
	ActualHours    float64    `json:"actualHours" bson:"actual_hours"`
	Comments       []Comment  `json:"comments" bson:"comments"`
	CreatedAt      time.Time  `json:"createdAt" bson:"created_at"`
	UpdatedAt      time.Time  `json:"updatedAt" bson:"updated_at"`
	CompletedAt    *time.Time `json:"completedAt" bson:"completed_at,omitempty"`
}

// Overdue reports whether the task is past its due date and still open.
func (t *Task) Overdue(now time.Time) bool {
	return t.DueDate != nil && t.Status != TaskCompleted && t.DueDate.Before(now)
}

type Comment struct {
	ID        string    `json:"id" bson:"id"`
	UserID    string    `json:"user" bson:"user"`
	Text      string    `json:"text" bson:"text"`
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

// Principal is the resolved identity of an authenticated caller. Role always
// comes from the stored user record.
type Principal struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

func PrincipalOf(u *User) Principal {
	return Principal{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

func (p Principal) Authenticated() bool { return p.ID != "" }
