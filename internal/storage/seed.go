package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

// Seed is the on-disk format of the seed file. Passwords are stored as bcrypt
// hashes (see the hash-password command).
//
//	administrators:
//	  - username: root
//	    email: root@example.com
//	    password_hash: $2a$10$...
//	instructors:
//	  - username: ada
//	    email: ada@example.com
//	    courses:
//	      - code: CS101
//	        name: Intro to Computing
type Seed struct {
	Administrators []SeedAdministrator `yaml:"administrators"`
	Instructors    []SeedInstructor    `yaml:"instructors"`
}

type SeedAdministrator struct {
	Username     string `yaml:"username"`
	Email        string `yaml:"email"`
	PasswordHash string `yaml:"password_hash"`
}

type SeedInstructor struct {
	Username     string       `yaml:"username"`
	Email        string       `yaml:"email"`
	PasswordHash string       `yaml:"password_hash"`
	Description  string       `yaml:"description"`
	Bio          string       `yaml:"bio"`
	Contact      string       `yaml:"contact"`
	Address      string       `yaml:"address"`
	Timezone     string       `yaml:"timezone"`
	Courses      []SeedCourse `yaml:"courses"`
}

type SeedCourse struct {
	Code          string   `yaml:"code"`
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description"`
	Image         *string  `yaml:"image"`
	DurationHours int      `yaml:"duration_hours"`
	Price         float64  `yaml:"price"`
	Discount      *float64 `yaml:"discount"`
	StartDate     string   `yaml:"start_date"`
	EndDate       string   `yaml:"end_date"`
	Approved      bool     `yaml:"approved"`
}

// LoadSeed reads and parses a seed file.
func LoadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &seed, nil
}

// ApplySeed inserts seed records that do not already exist. Records whose
// email is already registered are skipped, so applying a seed is idempotent.
func ApplySeed(ctx context.Context, store Store, seed *Seed) error {
	var firstAdmin *int64
	for _, sa := range seed.Administrators {
		a := &Administrator{Username: sa.Username, Email: sa.Email, PasswordHash: sa.PasswordHash}
		err := store.CreateAdministrator(ctx, a)
		switch {
		case errors.Is(err, ErrEmailTaken):
			slog.Debug("seed administrator exists, skipping", "email", sa.Email)
			if existing, _ := store.GetAdministratorByEmail(ctx, sa.Email); existing != nil && firstAdmin == nil {
				firstAdmin = &existing.ID
			}
			continue
		case err != nil:
			return fmt.Errorf("seed administrator %s: %w", sa.Email, err)
		}
		if firstAdmin == nil {
			firstAdmin = &a.ID
		}
		slog.Info("seeded administrator", "email", a.Email, "id", a.ID)
	}

	for _, si := range seed.Instructors {
		i := &Instructor{
			Username:     si.Username,
			Email:        si.Email,
			PasswordHash: si.PasswordHash,
			Description:  si.Description,
			Bio:          si.Bio,
			Contact:      si.Contact,
			Address:      si.Address,
			Timezone:     si.Timezone,
		}
		err := store.CreateInstructor(ctx, i)
		if errors.Is(err, ErrEmailTaken) {
			slog.Debug("seed instructor exists, skipping", "email", si.Email)
			continue
		}
		if err != nil {
			return fmt.Errorf("seed instructor %s: %w", si.Email, err)
		}
		slog.Info("seeded instructor", "email", i.Email, "id", i.ID)

		for _, sc := range si.Courses {
			c := &Course{
				InstructorID:  i.ID,
				Code:          sc.Code,
				Name:          sc.Name,
				Description:   sc.Description,
				Image:         sc.Image,
				DurationHours: sc.DurationHours,
				Price:         sc.Price,
				Discount:      sc.Discount,
				StartDate:     sc.StartDate,
				EndDate:       sc.EndDate,
				IsApproved:    sc.Approved,
			}
			if sc.Approved {
				c.ApprovedByAdminID = firstAdmin
			}
			if err := store.CreateCourse(ctx, c); err != nil {
				return fmt.Errorf("seed course %s: %w", sc.Code, err)
			}
			if _, err := store.AssignCourse(ctx, i.ID, c.ID); err != nil {
				return fmt.Errorf("assign course %s: %w", sc.Code, err)
			}
		}
	}
	return nil
}
