package models

import "time"

type RegisterRequest struct {
	Name       string `json:"name" form:"name" binding:"required,max=50"`
	Email      string `json:"email" form:"email" binding:"required,email"`
	Password   string `json:"password" form:"password" binding:"required,min=6"`
	Role       Role   `json:"role" form:"role"`
	Department string `json:"department" form:"department" binding:"max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" form:"email" binding:"required,email"`
	Password string `json:"password" form:"password" binding:"required"`
}

type CreateUserRequest struct {
	Name       string `json:"name" form:"name" binding:"required,max=50"`
	Email      string `json:"email" form:"email" binding:"required,email"`
	Password   string `json:"password" form:"password" binding:"required,min=6"`
	Role       Role   `json:"role" form:"role"`
	Department string `json:"department" form:"department" binding:"max=100"`
	Bio        string `json:"bio" form:"bio" binding:"max=200"`
}

type UpdateUserRequest struct {
	Name       *string `json:"name" form:"name" binding:"omitempty,min=1,max=50"`
	Email      *string `json:"email" form:"email" binding:"omitempty,email"`
	Role       *Role   `json:"role" form:"role"`
	Department *string `json:"department" form:"department" binding:"omitempty,max=100"`
	Bio        *string `json:"bio" form:"bio" binding:"omitempty,max=200"`
}

// UpdateProfileRequest carries the self-service fields. Role is accepted
// only so that an attempt to change it can be rejected explicitly.
type UpdateProfileRequest struct {
	Name           *string `json:"name" form:"name" binding:"omitempty,min=1,max=50"`
	Email          *string `json:"email" form:"email" binding:"omitempty,email"`
	Department     *string `json:"department" form:"department" binding:"omitempty,max=100"`
	Bio            *string `json:"bio" form:"bio" binding:"omitempty,max=200"`
	ProfilePicture *string `json:"profilePicture" form:"profilePicture" binding:"omitempty,max=255"`
	Role           *Role   `json:"role" form:"role"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" form:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" form:"newPassword" binding:"required,min=6"`
}

type CreateProjectRequest struct {
	Name        string        `json:"name" form:"name" binding:"required,max=100"`
	Description string        `json:"description" form:"description" binding:"required,max=500"`
	Manager     string        `json:"manager" form:"manager"`
	Team        []string      `json:"team" form:"team"`
	Status      ProjectStatus `json:"status" form:"status"`
	StartDate   *time.Time    `json:"startDate" form:"startDate" time_format:"2006-01-02"`
	EndDate     *time.Time    `json:"endDate" form:"endDate" time_format:"2006-01-02"`
}

type UpdateProjectRequest struct {
	Name        *string        `json:"name" form:"name" binding:"omitempty,min=1,max=100"`
	Description *string        `json:"description" form:"description" binding:"omitempty,min=1,max=500"`
	Manager     *string        `json:"manager" form:"manager"`
	Status      *ProjectStatus `json:"status" form:"status"`
	StartDate   *time.Time     `json:"startDate" form:"startDate" time_format:"2006-01-02"`
	EndDate     *time.Time     `json:"endDate" form:"endDate" time_format:"2006-01-02"`
}

type TeamMemberRequest struct {
	UserID string `json:"userId" form:"userId" binding:"required"`
}

type CreateTaskRequest struct {
	Title          string     `json:"title" form:"title" binding:"required,max=100"`
	Description    string     `json:"description" form:"description" binding:"required,max=1000"`
	Project        string     `json:"project" form:"project" binding:"required"`
	AssignedTo     string     `json:"assignedTo" form:"assignedTo"`
	Status         TaskStatus `json:"status" form:"status"`
	Priority       Priority   `json:"priority" form:"priority"`
	DueDate        *time.Time `json:"dueDate" form:"dueDate" time_format:"2006-01-02"`
	EstimatedHours float64    `json:"estimatedHours" form:"estimatedHours" binding:"gte=0"`
}

// UpdateTaskRequest holds the general task fields. An empty AssignedTo
// unassigns the task.
type UpdateTaskRequest struct {
	Title          *string     `json:"title" form:"title" binding:"omitempty,min=1,max=100"`
	Description    *string     `json:"description" form:"description" binding:"omitempty,min=1,max=1000"`
	AssignedTo     *string     `json:"assignedTo" form:"assignedTo"`
	Status         *TaskStatus `json:"status" form:"status"`
	Priority       *Priority   `json:"priority" form:"priority"`
	DueDate        *time.Time  `json:"dueDate" form:"dueDate" time_format:"2006-01-02"`
	EstimatedHours *float64    `json:"estimatedHours" form:"estimatedHours" binding:"omitempty,gte=0"`
	ActualHours    *float64    `json:"actualHours" form:"actualHours" binding:"omitempty,gte=0"`
}

type TaskStatusRequest struct {
	Status TaskStatus `json:"status" form:"status" binding:"required"`
}

type CommentRequest struct {
	Text string `json:"text" form:"text" binding:"required,max=1000"`
}

type TaskQuery struct {
	Project    string `form:"project"`
	Status     string `form:"status"`
	Priority   string `form:"priority"`
	AssignedTo string `form:"assignedTo"`
	Limit      int    `form:"limit"`
}

// ProjectQuery filters the project list. Sort is one of createdAt, name,
// status or endDate.
type ProjectQuery struct {
	Status string `form:"status"`
	Search string `form:"search"`
	Sort   string `form:"sort"`
	Limit  int    `form:"limit"`
}
