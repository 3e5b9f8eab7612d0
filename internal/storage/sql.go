package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQLStore implements Store on sqlx. Queries are written with "?"
// placeholders and rebound for the connected driver.
type SQLStore struct {
	db     *sqlx.DB
	driver string
}

// Open connects to the database, applies the schema, and returns a store.
// For sqlite, dsn is a file path; for postgres, a connection string.
func Open(driver, dsn string) (*SQLStore, error) {
	var (
		db  *sqlx.DB
		err error
	)
	switch driver {
	case DriverSQLite, "":
		driver = DriverSQLite
		db, err = sqlx.Open("sqlite", dsn+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)")
		if err == nil {
			// Avoid "database is locked" with a single connection.
			db.SetMaxOpenConns(1)
			db.SetMaxIdleConns(1)
		}
	case DriverPostgres:
		db, err = sqlx.Open("pgx", dsn)
		if err == nil {
			db.SetMaxOpenConns(25)
			db.SetMaxIdleConns(5)
			db.SetConnMaxLifetime(5 * time.Minute)
		}
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	s := &SQLStore{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// NewSQLiteStore opens (or creates) a SQLite database at path.
func NewSQLiteStore(path string) (*SQLStore, error) {
	return Open(DriverSQLite, path)
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Stats returns connection pool statistics.
func (s *SQLStore) Stats() sql.DBStats {
	return s.db.Stats()
}

func (s *SQLStore) migrate() error {
	schema := sqliteSchema
	if s.driver == DriverPostgres {
		schema = postgresSchema
	}
	_, err := s.db.Exec(schema)
	return err
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// emailInUse reports whether email belongs to any administrator or instructor,
// ignoring the record identified by (selfTable, selfID).
func (s *SQLStore) emailInUse(ctx context.Context, q sqlx.QueryerContext, email, selfTable string, selfID int64) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, s.db.Rebind(`
		SELECT COUNT(*) FROM (
			SELECT 'administrators' AS t, id FROM administrators WHERE email=?
			UNION ALL
			SELECT 'instructors' AS t, id FROM instructors WHERE email=?
		) m WHERE NOT (m.t=? AND m.id=?)`),
		email, email, selfTable, selfID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// withTx runs fn in a transaction, committing on success.
func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// getOne runs a single-row query into dest and reports whether a row matched.
func getOne(ctx context.Context, q sqlx.QueryerContext, dest any, query string, args ...any) (bool, error) {
	err := sqlx.GetContext(ctx, q, dest, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// --- Role lookups ---

func (s *SQLStore) idByEmail(ctx context.Context, table, email string) (int64, bool, error) {
	var id int64
	ok, err := getOne(ctx, s.db, &id, s.db.Rebind(`SELECT id FROM `+table+` WHERE email=?`), normalizeEmail(email))
	if err != nil {
		return 0, false, fmt.Errorf("lookup %s by email: %w", table, err)
	}
	return id, ok, nil
}

func (s *SQLStore) AdministratorIDByEmail(ctx context.Context, email string) (int64, bool, error) {
	return s.idByEmail(ctx, "administrators", email)
}

func (s *SQLStore) InstructorIDByEmail(ctx context.Context, email string) (int64, bool, error) {
	return s.idByEmail(ctx, "instructors", email)
}

// --- Administrators ---

const adminColumns = `id, username, email, password_hash, created_at, modified_at`

// adminRow is the administrators table as stored; times are unix seconds.
type adminRow struct {
	ID           int64  `db:"id"`
	Username     string `db:"username"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	CreatedAt    int64  `db:"created_at"`
	ModifiedAt   int64  `db:"modified_at"`
}

func (r adminRow) administrator() *Administrator {
	return &Administrator{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		CreatedAt:    time.Unix(r.CreatedAt, 0),
		ModifiedAt:   time.Unix(r.ModifiedAt, 0),
	}
}

func (s *SQLStore) CreateAdministrator(ctx context.Context, a *Administrator) error {
	a.Email = normalizeEmail(a.Email)
	now := time.Now()
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		taken, err := s.emailInUse(ctx, tx, a.Email, "", 0)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if taken {
			return ErrEmailTaken
		}
		err = tx.GetContext(ctx, &a.ID, tx.Rebind(
			`INSERT INTO administrators (username, email, password_hash, created_at, modified_at)
			 VALUES (?, ?, ?, ?, ?) RETURNING id`),
			a.Username, a.Email, a.PasswordHash, now.Unix(), now.Unix())
		if err != nil {
			return fmt.Errorf("insert administrator: %w", err)
		}
		a.CreatedAt = time.Unix(now.Unix(), 0)
		a.ModifiedAt = a.CreatedAt
		return nil
	})
}

func (s *SQLStore) getAdministrator(ctx context.Context, q sqlx.QueryerContext, where string, arg any) (*Administrator, error) {
	var row adminRow
	ok, err := getOne(ctx, q, &row, s.db.Rebind(`SELECT `+adminColumns+` FROM administrators WHERE `+where+`=?`), arg)
	if !ok {
		return nil, err
	}
	return row.administrator(), nil
}

func (s *SQLStore) GetAdministrator(ctx context.Context, id int64) (*Administrator, error) {
	return s.getAdministrator(ctx, s.db, "id", id)
}

func (s *SQLStore) GetAdministratorByEmail(ctx context.Context, email string) (*Administrator, error) {
	return s.getAdministrator(ctx, s.db, "email", normalizeEmail(email))
}

func (s *SQLStore) ListAdministrators(ctx context.Context) ([]Administrator, error) {
	var rows []adminRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+adminColumns+` FROM administrators ORDER BY id`); err != nil {
		return nil, err
	}
	out := make([]Administrator, len(rows))
	for n, r := range rows {
		out[n] = *r.administrator()
	}
	return out, nil
}

func (s *SQLStore) UpdateAdministrator(ctx context.Context, id int64, u AdministratorUpdate) (*Administrator, error) {
	var updated *Administrator
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		cur, err := s.getAdministrator(ctx, tx, "id", id)
		if err != nil {
			return err
		}
		if cur == nil {
			return ErrNotFound
		}

		if u.Username != nil && *u.Username != "" {
			cur.Username = *u.Username
		}
		if u.Email != nil && *u.Email != "" {
			email := normalizeEmail(*u.Email)
			if email != cur.Email {
				taken, err := s.emailInUse(ctx, tx, email, "administrators", id)
				if err != nil {
					return fmt.Errorf("check email: %w", err)
				}
				if taken {
					return ErrEmailTaken
				}
			}
			cur.Email = email
		}
		if u.PasswordHash != nil && *u.PasswordHash != "" {
			cur.PasswordHash = *u.PasswordHash
		}
		now := time.Now().Unix()
		if _, err := tx.ExecContext(ctx, tx.Rebind(
			`UPDATE administrators SET username=?, email=?, password_hash=?, modified_at=? WHERE id=?`),
			cur.Username, cur.Email, cur.PasswordHash, now, id); err != nil {
			return fmt.Errorf("update administrator: %w", err)
		}
		cur.ModifiedAt = time.Unix(now, 0)
		updated = cur
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *SQLStore) DeleteAdministrator(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "administrators", id)
}

func (s *SQLStore) deleteByID(ctx context.Context, table string, id int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM `+table+` WHERE id=?`), id)
	if err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Instructors ---

const instructorColumns = `id, username, email, password_hash, description, bio, contact, address, timezone, created_at, modified_at`

type instructorRow struct {
	ID           int64  `db:"id"`
	Username     string `db:"username"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	Description  string `db:"description"`
	Bio          string `db:"bio"`
	Contact      string `db:"contact"`
	Address      string `db:"address"`
	Timezone     string `db:"timezone"`
	CreatedAt    int64  `db:"created_at"`
	ModifiedAt   int64  `db:"modified_at"`
}

func (r instructorRow) instructor() *Instructor {
	return &Instructor{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Description:  r.Description,
		Bio:          r.Bio,
		Contact:      r.Contact,
		Address:      r.Address,
		Timezone:     r.Timezone,
		CreatedAt:    time.Unix(r.CreatedAt, 0),
		ModifiedAt:   time.Unix(r.ModifiedAt, 0),
	}
}

func (s *SQLStore) CreateInstructor(ctx context.Context, i *Instructor) error {
	i.Email = normalizeEmail(i.Email)
	now := time.Now()
	return s.withTx(ctx, func(tx *sqlx.Tx) error {
		taken, err := s.emailInUse(ctx, tx, i.Email, "", 0)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if taken {
			return ErrEmailTaken
		}
		err = tx.GetContext(ctx, &i.ID, tx.Rebind(
			`INSERT INTO instructors (username, email, password_hash, description, bio, contact, address, timezone, created_at, modified_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
			i.Username, i.Email, i.PasswordHash, i.Description, i.Bio, i.Contact, i.Address, i.Timezone,
			now.Unix(), now.Unix())
		if err != nil {
			return fmt.Errorf("insert instructor: %w", err)
		}
		i.CreatedAt = time.Unix(now.Unix(), 0)
		i.ModifiedAt = i.CreatedAt
		return nil
	})
}

func (s *SQLStore) GetInstructor(ctx context.Context, id int64) (*Instructor, error) {
	var row instructorRow
	ok, err := getOne(ctx, s.db, &row, s.db.Rebind(`SELECT `+instructorColumns+` FROM instructors WHERE id=?`), id)
	if !ok {
		return nil, err
	}
	return row.instructor(), nil
}

func (s *SQLStore) ListInstructors(ctx context.Context) ([]Instructor, error) {
	var rows []instructorRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+instructorColumns+` FROM instructors ORDER BY id`); err != nil {
		return nil, err
	}
	out := make([]Instructor, len(rows))
	for n, r := range rows {
		out[n] = *r.instructor()
	}
	return out, nil
}

func (s *SQLStore) DeleteInstructor(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "instructors", id)
}

// --- Courses ---

const courseColumns = `id, instructor_id, approved_by_admin_id, code, name, description, image, duration_hours,
	price, discount, start_date, end_date, is_approved, created_at, modified_at`

type courseRow struct {
	ID                int64    `db:"id"`
	InstructorID      int64    `db:"instructor_id"`
	ApprovedByAdminID *int64   `db:"approved_by_admin_id"`
	Code              string   `db:"code"`
	Name              string   `db:"name"`
	Description       string   `db:"description"`
	Image             *string  `db:"image"`
	DurationHours     int      `db:"duration_hours"`
	Price             float64  `db:"price"`
	Discount          *float64 `db:"discount"`
	StartDate         string   `db:"start_date"`
	EndDate           string   `db:"end_date"`
	IsApproved        bool     `db:"is_approved"`
	CreatedAt         int64    `db:"created_at"`
	ModifiedAt        int64    `db:"modified_at"`
}

func (r courseRow) course() *Course {
	return &Course{
		ID:                r.ID,
		InstructorID:      r.InstructorID,
		ApprovedByAdminID: r.ApprovedByAdminID,
		Code:              r.Code,
		Name:              r.Name,
		Description:       r.Description,
		Image:             r.Image,
		DurationHours:     r.DurationHours,
		Price:             r.Price,
		Discount:          r.Discount,
		StartDate:         r.StartDate,
		EndDate:           r.EndDate,
		IsApproved:        r.IsApproved,
		CreatedAt:         time.Unix(r.CreatedAt, 0),
		ModifiedAt:        time.Unix(r.ModifiedAt, 0),
	}
}

func (s *SQLStore) CreateCourse(ctx context.Context, c *Course) error {
	now := time.Now().Unix()
	err := s.db.GetContext(ctx, &c.ID, s.db.Rebind(
		`INSERT INTO courses (instructor_id, approved_by_admin_id, code, name, description, image, duration_hours,
		 price, discount, start_date, end_date, is_approved, created_at, modified_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		c.InstructorID, c.ApprovedByAdminID, c.Code, c.Name, c.Description, c.Image, c.DurationHours,
		c.Price, c.Discount, c.StartDate, c.EndDate, c.IsApproved, now, now)
	if err != nil {
		return fmt.Errorf("insert course: %w", err)
	}
	c.CreatedAt = time.Unix(now, 0)
	c.ModifiedAt = c.CreatedAt
	return nil
}

func (s *SQLStore) GetCourse(ctx context.Context, id int64) (*Course, error) {
	var row courseRow
	ok, err := getOne(ctx, s.db, &row, s.db.Rebind(`SELECT `+courseColumns+` FROM courses WHERE id=?`), id)
	if !ok {
		return nil, err
	}
	return row.course(), nil
}

func (s *SQLStore) ListCourses(ctx context.Context) ([]Course, error) {
	var rows []courseRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+courseColumns+` FROM courses ORDER BY id`); err != nil {
		return nil, err
	}
	out := make([]Course, len(rows))
	for n, r := range rows {
		out[n] = *r.course()
	}
	return out, nil
}

type instructorCourseRow struct {
	ID           int64 `db:"id"`
	InstructorID int64 `db:"instructor_id"`
	CourseID     int64 `db:"course_id"`
	CreatedAt    int64 `db:"created_at"`
	ModifiedAt   int64 `db:"modified_at"`
}

func (s *SQLStore) AssignCourse(ctx context.Context, instructorID, courseID int64) (*InstructorCourse, error) {
	now := time.Now().Unix()
	ic := &InstructorCourse{InstructorID: instructorID, CourseID: courseID}
	err := s.db.GetContext(ctx, &ic.ID, s.db.Rebind(
		`INSERT INTO instructor_courses (instructor_id, course_id, created_at, modified_at)
		 VALUES (?, ?, ?, ?) RETURNING id`),
		instructorID, courseID, now, now)
	if err != nil {
		return nil, fmt.Errorf("assign course: %w", err)
	}
	ic.CreatedAt = time.Unix(now, 0)
	ic.ModifiedAt = ic.CreatedAt
	return ic, nil
}

func (s *SQLStore) ListInstructorCourses(ctx context.Context, instructorID int64) ([]InstructorCourse, error) {
	var rows []instructorCourseRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(
		`SELECT id, instructor_id, course_id, created_at, modified_at FROM instructor_courses
		 WHERE instructor_id=? ORDER BY id`), instructorID)
	if err != nil {
		return nil, err
	}
	out := make([]InstructorCourse, len(rows))
	for n, r := range rows {
		out[n] = InstructorCourse{
			ID:           r.ID,
			InstructorID: r.InstructorID,
			CourseID:     r.CourseID,
			CreatedAt:    time.Unix(r.CreatedAt, 0),
			ModifiedAt:   time.Unix(r.ModifiedAt, 0),
		}
	}
	return out, nil
}

// --- System logs ---

type systemLogRow struct {
	ID        int64  `db:"id"`
	AdminID   int64  `db:"admin_id"`
	Type      string `db:"log_type"`
	Message   string `db:"log_message"`
	Details   string `db:"log_details"`
	Timestamp int64  `db:"log_timestamp"`
}

func (s *SQLStore) CreateSystemLog(ctx context.Context, l *SystemLog) error {
	if l.Timestamp.IsZero() {
		l.Timestamp = time.Now()
	}
	err := s.db.GetContext(ctx, &l.ID, s.db.Rebind(
		`INSERT INTO system_logs (admin_id, log_type, log_message, log_details, log_timestamp)
		 VALUES (?, ?, ?, ?, ?) RETURNING id`),
		l.AdminID, l.Type, l.Message, l.Details, l.Timestamp.Unix())
	if err != nil {
		return fmt.Errorf("insert system log: %w", err)
	}
	l.Timestamp = time.Unix(l.Timestamp.Unix(), 0)
	return nil
}

// ListSystemLogs returns at most limit logs, newest first. A limit below one
// returns no rows.
func (s *SQLStore) ListSystemLogs(ctx context.Context, limit int) ([]SystemLog, error) {
	if limit <= 0 {
		return []SystemLog{}, nil
	}
	var rows []systemLogRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(
		`SELECT id, admin_id, log_type, log_message, log_details, log_timestamp FROM system_logs
		 ORDER BY log_timestamp DESC, id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, err
	}
	out := make([]SystemLog, len(rows))
	for n, r := range rows {
		out[n] = SystemLog{
			ID:        r.ID,
			AdminID:   r.AdminID,
			Type:      r.Type,
			Message:   r.Message,
			Details:   r.Details,
			Timestamp: time.Unix(r.Timestamp, 0),
		}
	}
	return out, nil
}
