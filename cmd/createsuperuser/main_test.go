package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/geoprofile/internal/password"
	"github.com/suteetoe/geoprofile/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{Password: config.PasswordConfig{MinLength: 8, MinEntropy: 50}}
}

func TestBuildSuperuser(t *testing.T) {
	u, err := buildSuperuser(testConfig(), "root@EXAMPLE.com", "correct-Horse-battery-9", "Nepal", 3, "1980-06-01")
	require.NoError(t, err)

	assert.Equal(t, "root@example.com", u.Email)
	assert.True(t, u.IsActive)
	assert.True(t, u.IsSuperuser)
	assert.True(t, u.IsStaff)
	assert.True(t, u.IsAdmin)
	assert.True(t, password.Check(u.Password, "correct-Horse-battery-9"))
	assert.Equal(t, 1980, u.DateOfBirth.Year())
}

func TestBuildSuperuserRejectsInput(t *testing.T) {
	cfg := testConfig()
	cases := map[string]func() error{
		"no email": func() error {
			_, err := buildSuperuser(cfg, "", "correct-Horse-battery-9", "Nepal", 3, "1980-06-01")
			return err
		},
		"country": func() error {
			_, err := buildSuperuser(cfg, "a@example.com", "correct-Horse-battery-9", "Atlantis", 3, "1980-06-01")
			return err
		},
		"phone": func() error {
			_, err := buildSuperuser(cfg, "a@example.com", "correct-Horse-battery-9", "Nepal", 16, "1980-06-01")
			return err
		},
		"date": func() error {
			_, err := buildSuperuser(cfg, "a@example.com", "correct-Horse-battery-9", "Nepal", 3, "01/06/1980")
			return err
		},
		"weak password": func() error {
			_, err := buildSuperuser(cfg, "a@example.com", "asdf", "Nepal", 3, "1980-06-01")
			return err
		},
	}
	for name, run := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, run())
		})
	}
}
