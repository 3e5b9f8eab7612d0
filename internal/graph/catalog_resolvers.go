package graph

import (
	"context"
)

const (
	defaultSystemLogs = 100
	maxSystemLogs     = 500
)

func (r *Resolver) Instructor(ctx context.Context, args idArgs) (*instructorResolver, error) {
	return guard(r, "instructor", staff, r.getInstructor)(ctx, args)
}

func (r *Resolver) getInstructor(ctx context.Context, args idArgs) (*instructorResolver, error) {
	id, err := parseID(args.ID)
	if err != nil {
		return nil, err
	}
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()
	i, err := r.store.GetInstructor(sctx, id)
	if err != nil {
		return nil, internal("Failed to fetch instructor", err, "instructor_id", id)
	}
	if i == nil {
		return nil, nil
	}
	return &instructorResolver{i: *i, store: r.store}, nil
}

func (r *Resolver) Instructors(ctx context.Context) ([]*instructorResolver, error) {
	return guard(r, "instructors", staff, r.listInstructors)(ctx, noArgs{})
}

func (r *Resolver) listInstructors(ctx context.Context, _ noArgs) ([]*instructorResolver, error) {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()
	list, err := r.store.ListInstructors(sctx)
	if err != nil {
		return nil, internal("Failed to fetch instructors", err)
	}
	out := make([]*instructorResolver, len(list))
	for n := range list {
		out[n] = &instructorResolver{i: list[n], store: r.store}
	}
	return out, nil
}

func (r *Resolver) Course(ctx context.Context, args idArgs) (*courseResolver, error) {
	return guard(r, "course", authenticated, r.getCourse)(ctx, args)
}

func (r *Resolver) getCourse(ctx context.Context, args idArgs) (*courseResolver, error) {
	id, err := parseID(args.ID)
	if err != nil {
		return nil, err
	}
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()
	c, err := r.store.GetCourse(sctx, id)
	if err != nil {
		return nil, internal("Failed to fetch course", err, "course_id", id)
	}
	if c == nil {
		return nil, nil
	}
	return &courseResolver{c: *c}, nil
}

func (r *Resolver) Courses(ctx context.Context) ([]*courseResolver, error) {
	return guard(r, "courses", authenticated, r.listCourses)(ctx, noArgs{})
}

func (r *Resolver) listCourses(ctx context.Context, _ noArgs) ([]*courseResolver, error) {
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()
	list, err := r.store.ListCourses(sctx)
	if err != nil {
		return nil, internal("Failed to fetch courses", err)
	}
	out := make([]*courseResolver, len(list))
	for n := range list {
		out[n] = &courseResolver{c: list[n]}
	}
	return out, nil
}

type systemLogsArgs struct {
	Limit *int32
}

func (r *Resolver) SystemLogs(ctx context.Context, args systemLogsArgs) ([]*systemLogResolver, error) {
	return guard(r, "systemLogs", adminOnly, r.listSystemLogs)(ctx, args)
}

func (r *Resolver) listSystemLogs(ctx context.Context, args systemLogsArgs) ([]*systemLogResolver, error) {
	limit := defaultSystemLogs
	if args.Limit != nil {
		if *args.Limit <= 0 {
			return nil, badInput("limit must be positive")
		}
		limit = min(int(*args.Limit), maxSystemLogs)
	}
	sctx, cancel := r.storeCtx(ctx)
	defer cancel()
	logs, err := r.store.ListSystemLogs(sctx, limit)
	if err != nil {
		return nil, internal("Failed to fetch system logs", err)
	}
	out := make([]*systemLogResolver, len(logs))
	for n := range logs {
		out[n] = &systemLogResolver{l: logs[n]}
	}
	return out, nil
}
