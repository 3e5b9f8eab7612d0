package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by update and delete operations on a missing record.
	ErrNotFound = errors.New("record not found")
	// ErrEmailTaken is returned when an email is already registered as an
	// administrator or an instructor. An email may belong to at most one of them.
	ErrEmailTaken = errors.New("email already registered")
)

// Administrator is a platform administrator account.
type Administrator struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	ModifiedAt   time.Time
}

// AdministratorUpdate is a partial update; nil fields are left unchanged.
type AdministratorUpdate struct {
	Username     *string
	Email        *string
	PasswordHash *string
}

// Instructor is a course instructor account.
type Instructor struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Description  string
	Bio          string
	Contact      string
	Address      string
	Timezone     string
	CreatedAt    time.Time
	ModifiedAt   time.Time
}

// Course is a course offered by an instructor.
type Course struct {
	ID                int64
	InstructorID      int64
	ApprovedByAdminID *int64
	Code              string
	Name              string
	Description       string
	Image             *string
	DurationHours     int
	Price             float64
	Discount          *float64
	StartDate         string // ISO date, as entered
	EndDate           string
	IsApproved        bool
	CreatedAt         time.Time
	ModifiedAt        time.Time
}

// InstructorCourse links an instructor to a course they teach.
type InstructorCourse struct {
	ID           int64
	InstructorID int64
	CourseID     int64
	CreatedAt    time.Time
	ModifiedAt   time.Time
}

// SystemLog is an administrative activity record.
type SystemLog struct {
	ID        int64
	AdminID   int64
	Type      string
	Message   string
	Details   string
	Timestamp time.Time
}

// Store is the storage interface for the backend. Get methods return
// (nil, nil) when no record matches.
type Store interface {
	// Lifecycle
	Close() error
	Ping(ctx context.Context) error

	// Role lookups
	AdministratorIDByEmail(ctx context.Context, email string) (int64, bool, error)
	InstructorIDByEmail(ctx context.Context, email string) (int64, bool, error)

	// Administrators
	CreateAdministrator(ctx context.Context, a *Administrator) error
	GetAdministrator(ctx context.Context, id int64) (*Administrator, error)
	GetAdministratorByEmail(ctx context.Context, email string) (*Administrator, error)
	ListAdministrators(ctx context.Context) ([]Administrator, error)
	UpdateAdministrator(ctx context.Context, id int64, u AdministratorUpdate) (*Administrator, error)
	DeleteAdministrator(ctx context.Context, id int64) error

	// Instructors
	CreateInstructor(ctx context.Context, i *Instructor) error
	GetInstructor(ctx context.Context, id int64) (*Instructor, error)
	ListInstructors(ctx context.Context) ([]Instructor, error)
	DeleteInstructor(ctx context.Context, id int64) error

	// Courses
	CreateCourse(ctx context.Context, c *Course) error
	GetCourse(ctx context.Context, id int64) (*Course, error)
	ListCourses(ctx context.Context) ([]Course, error)
	AssignCourse(ctx context.Context, instructorID, courseID int64) (*InstructorCourse, error)
	ListInstructorCourses(ctx context.Context, instructorID int64) ([]InstructorCourse, error)

	// System logs
	CreateSystemLog(ctx context.Context, l *SystemLog) error
	ListSystemLogs(ctx context.Context, limit int) ([]SystemLog, error)
}
