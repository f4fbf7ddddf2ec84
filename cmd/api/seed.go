package main

import (
	"context"
	"errors"
	"log"

	"esas/internal/account"
	"esas/internal/attendance"
	"esas/internal/auth"
)

// seedDemo fills the memory backend with one course assignment, a few
// enrolled students and a login per role.
func seedDemo(ctx context.Context, st *attendance.MemoryStore, accounts *account.Service) error {
	st.AddAssignment(attendance.Assignment{ID: "asg-demo", LecturerID: "lec-demo", CourseID: "CSC101", AcademicYearID: "2024/2025"})
	for _, id := range []string{"stu-demo-1", "stu-demo-2", "stu-demo-3"} {
		st.AddStudent(id)
		st.AddEnrollment(id, "CSC101", "2024/2025")
	}

	users := []struct {
		username, password, role, entityID string
	}{
		{"admin", "admin123", auth.RoleAdmin, "adm-demo"},
		{"lecturer1", "lecturer123", auth.RoleLecturer, "lec-demo"},
		{"student1", "student123", auth.RoleStudent, "stu-demo-1"},
	}
	for _, u := range users {
		_, err := accounts.Register(ctx, u.username, "", u.password, u.role, u.entityID)
		if err != nil && !errors.Is(err, account.ErrUsernameTaken) {
			return err
		}
		log.Printf("demo account %s (%s) ready", u.username, u.role)
	}
	return nil
}
