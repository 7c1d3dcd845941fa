package utils

import "testing"

type registerShape struct {
	FullName             string `validate:"required,nameok"`
	Email                string `validate:"required,emailok"`
	Password             string `validate:"required,pwdmin"`
	PasswordConfirmation string `validate:"required,eqfield=Password"`
}

func TestValidateStruct_OK(t *testing.T) {
	s := registerShape{
		FullName:             "Jane Doe",
		Email:                "jane@example.com",
		Password:             "longenough",
		PasswordConfirmation: "longenough",
	}
	if err := ValidateStruct(&s); err != nil {
		t.Fatalf("expected valid struct, got %v", err)
	}
}

func TestValidateStruct_Failures(t *testing.T) {
	base := registerShape{
		FullName:             "Jane Doe",
		Email:                "jane@example.com",
		Password:             "longenough",
		PasswordConfirmation: "longenough",
	}

	cases := []struct {
		name   string
		mutate func(*registerShape)
	}{
		{"missing name", func(s *registerShape) { s.FullName = "" }},
		{"bad email", func(s *registerShape) { s.Email = "not-an-email" }},
		{"short password", func(s *registerShape) { s.Password = "short"; s.PasswordConfirmation = "short" }},
		{"mismatched confirmation", func(s *registerShape) { s.PasswordConfirmation = "different1" }},
		{"name with symbols", func(s *registerShape) { s.FullName = "<script>" }},
	}
	for _, c := range cases {
		s := base
		c.mutate(&s)
		if err := ValidateStruct(&s); err == nil {
			t.Errorf("%s: expected error", c.name)
		}
	}
}

func TestValidateStruct_OneOf(t *testing.T) {
	type shape struct {
		Status string `validate:"oneof=accepted in_progress"`
	}
	if err := ValidateStruct(&shape{Status: "accepted"}); err != nil {
		t.Fatalf("accepted should pass: %v", err)
	}
	if err := ValidateStruct(&shape{Status: ""}); err != nil {
		t.Fatalf("empty optional oneof should pass: %v", err)
	}
	if err := ValidateStruct(&shape{Status: "done"}); err == nil {
		t.Fatal("unknown status should fail")
	}
}
