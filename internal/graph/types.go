package graph

import (
	"context"
	"fmt"

	graphql "github.com/graph-gophers/graphql-go"

	"github.com/starinfinity/star-infinity-api/internal/auth"
	"github.com/starinfinity/star-infinity-api/internal/storage"
)

type userResolver struct {
	user auth.User
}

func (u *userResolver) ID() graphql.ID { return graphql.ID(u.user.ID) }
func (u *userResolver) Email() string  { return u.user.Email }
func (u *userResolver) Role() string   { return u.user.Role.String() }

type authPayloadResolver struct {
	token        string
	refreshToken string
	user         *auth.User
}

func newAuthPayload(s *auth.Session, u *auth.User) *authPayloadResolver {
	p := &authPayloadResolver{user: u}
	if s != nil {
		p.token = s.AccessToken
		p.refreshToken = s.RefreshToken
	}
	return p
}

func (a *authPayloadResolver) Token() string { return a.token }

func (a *authPayloadResolver) RefreshToken() *string {
	if a.refreshToken == "" {
		return nil
	}
	return &a.refreshToken
}

func (a *authPayloadResolver) User() *userResolver { return &userResolver{user: *a.user} }

type adminResolver struct {
	a storage.Administrator
}

func (r *adminResolver) ID() graphql.ID       { return formatID(r.a.ID) }
func (r *adminResolver) Username() string     { return r.a.Username }
func (r *adminResolver) Email() string        { return r.a.Email }
func (r *adminResolver) CreatedAt() DateTime  { return DateTime{r.a.CreatedAt} }
func (r *adminResolver) ModifiedAt() DateTime { return DateTime{r.a.ModifiedAt} }

type instructorResolver struct {
	i     storage.Instructor
	store storage.Store
}

func (r *instructorResolver) ID() graphql.ID                { return formatID(r.i.ID) }
func (r *instructorResolver) Username() string              { return r.i.Username }
func (r *instructorResolver) Email() string                 { return r.i.Email }
func (r *instructorResolver) InstructorDescription() string { return r.i.Description }
func (r *instructorResolver) InstructorBio() string         { return r.i.Bio }
func (r *instructorResolver) InstructorContact() string     { return r.i.Contact }
func (r *instructorResolver) InstructorAddress() string     { return r.i.Address }
func (r *instructorResolver) InstructorTimezone() string    { return r.i.Timezone }
func (r *instructorResolver) CreatedAt() DateTime           { return DateTime{r.i.CreatedAt} }
func (r *instructorResolver) ModifiedAt() DateTime          { return DateTime{r.i.ModifiedAt} }

func (r *instructorResolver) Courses(ctx context.Context) ([]*instructorCourseResolver, error) {
	links, err := r.store.ListInstructorCourses(ctx, r.i.ID)
	if err != nil {
		return nil, internal("Failed to fetch instructor courses", err, "instructor_id", r.i.ID)
	}
	out := make([]*instructorCourseResolver, len(links))
	for n := range links {
		out[n] = &instructorCourseResolver{ic: links[n], store: r.store}
	}
	return out, nil
}

type instructorCourseResolver struct {
	ic    storage.InstructorCourse
	store storage.Store
}

func (r *instructorCourseResolver) ID() graphql.ID           { return formatID(r.ic.ID) }
func (r *instructorCourseResolver) InstructorID() graphql.ID { return formatID(r.ic.InstructorID) }
func (r *instructorCourseResolver) CourseID() graphql.ID     { return formatID(r.ic.CourseID) }
func (r *instructorCourseResolver) CreatedAt() DateTime      { return DateTime{r.ic.CreatedAt} }
func (r *instructorCourseResolver) ModifiedAt() DateTime     { return DateTime{r.ic.ModifiedAt} }

func (r *instructorCourseResolver) Course(ctx context.Context) (*courseResolver, error) {
	c, err := r.store.GetCourse(ctx, r.ic.CourseID)
	if err != nil {
		return nil, internal("Failed to fetch course", err, "course_id", r.ic.CourseID)
	}
	if c == nil {
		return nil, internal("Failed to fetch course", fmt.Errorf("course %d: %w", r.ic.CourseID, storage.ErrNotFound))
	}
	return &courseResolver{c: *c}, nil
}

type courseResolver struct {
	c storage.Course
}

func (r *courseResolver) ID() graphql.ID           { return formatID(r.c.ID) }
func (r *courseResolver) InstructorID() graphql.ID { return formatID(r.c.InstructorID) }

func (r *courseResolver) ApprovedByAdminID() *graphql.ID {
	if r.c.ApprovedByAdminID == nil {
		return nil
	}
	id := formatID(*r.c.ApprovedByAdminID)
	return &id
}

func (r *courseResolver) CourseCode() string        { return r.c.Code }
func (r *courseResolver) CourseName() string        { return r.c.Name }
func (r *courseResolver) CourseDescription() string { return r.c.Description }
func (r *courseResolver) CourseImage() *string      { return r.c.Image }
func (r *courseResolver) CourseDuration() int32     { return int32(r.c.DurationHours) }
func (r *courseResolver) CoursePrice() float64      { return r.c.Price }
func (r *courseResolver) CourseDiscount() *float64  { return r.c.Discount }
func (r *courseResolver) CourseStartDate() string   { return r.c.StartDate }
func (r *courseResolver) CourseEndDate() string     { return r.c.EndDate }
func (r *courseResolver) IsApproved() bool          { return r.c.IsApproved }
func (r *courseResolver) CreatedAt() DateTime       { return DateTime{r.c.CreatedAt} }
func (r *courseResolver) ModifiedAt() DateTime      { return DateTime{r.c.ModifiedAt} }

type systemLogResolver struct {
	l storage.SystemLog
}

func (r *systemLogResolver) ID() graphql.ID         { return formatID(r.l.ID) }
func (r *systemLogResolver) AdminID() graphql.ID    { return formatID(r.l.AdminID) }
func (r *systemLogResolver) LogType() string        { return r.l.Type }
func (r *systemLogResolver) LogMessage() string     { return r.l.Message }
func (r *systemLogResolver) LogDetails() string     { return r.l.Details }
func (r *systemLogResolver) LogTimestamp() DateTime { return DateTime{r.l.Timestamp} }
