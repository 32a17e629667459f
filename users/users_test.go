package users_test

import (
	"testing"

	"github.com/jrsteele09/go-rag-client/users"
	fakeuserrepo "github.com/jrsteele09/go-rag-client/users/repofake"
	"github.com/stretchr/testify/require"
)

func TestValidateEmail(t *testing.T) {
	require.NoError(t, users.ValidateEmail("test@example.com"))
	require.Error(t, users.ValidateEmail(""))
	require.Error(t, users.ValidateEmail("not-an-email"))
	require.Error(t, users.ValidateEmail("Test <test@example.com>"))
}

func TestValidatePasswordStrength(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		require.NoError(t, users.ValidatePasswordStrength("test123"))
	})

	t.Run("too short", func(t *testing.T) {
		err := users.ValidatePasswordStrength("a1")
		require.Error(t, err)
		require.Contains(t, err.Error(), "at least 6 characters")
	})

	t.Run("no digit", func(t *testing.T) {
		err := users.ValidatePasswordStrength("abcdefgh")
		require.Error(t, err)
		require.Contains(t, err.Error(), "number")
	})

	t.Run("no letter", func(t *testing.T) {
		err := users.ValidatePasswordStrength("12345678")
		require.Error(t, err)
		require.Contains(t, err.Error(), "letter")
	})
}

func TestDisplayName(t *testing.T) {
	require.Equal(t, "Ivan Petrov", (&users.User{Email: "a@b.c", FirstName: "Ivan", LastName: "Petrov"}).DisplayName())
	require.Equal(t, "a@b.c", (&users.User{Email: "a@b.c"}).DisplayName())

	var nilUser *users.User
	require.Equal(t, "", nilUser.DisplayName())
}

func TestPasswordHash(t *testing.T) {
	hash, err := users.HashPassword("test123")
	require.NoError(t, err)
	require.True(t, users.CheckPasswordHash("test123", hash))
	require.False(t, users.CheckPasswordHash("wrong", hash))

	u := &users.User{Email: "a@b.c", PasswordHash: hash}
	require.Empty(t, u.Public().PasswordHash)
	require.Equal(t, hash, u.PasswordHash)
}

func TestFakeUserRepo(t *testing.T) {
	repo := fakeuserrepo.NewFakeUserRepo()

	require.NoError(t, repo.Upsert(&users.User{Email: "Test@Example.com", FirstName: "Ivan"}))

	u, err := repo.GetByEmail("test@example.com")
	require.NoError(t, err)
	require.NotEmpty(t, u.ID)

	byID, err := repo.GetByID(u.ID)
	require.NoError(t, err)
	require.Equal(t, "Ivan", byID.FirstName)

	require.NoError(t, repo.SetPasswordHash("test@example.com", "hash"))
	u, err = repo.GetByEmail("test@example.com")
	require.NoError(t, err)
	require.Equal(t, "hash", u.PasswordHash)

	_, err = repo.GetByEmail("missing@example.com")
	require.Error(t, err)

	list, err := repo.List(0, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
}
