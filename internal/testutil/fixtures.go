package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"coffeeshop/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TestPassword is the password of every fixture user.
const TestPassword = "password123"

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a customer with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return CreateTestUserWithRole(t, db, fmt.Sprintf("user%d@test.com", nextID()), models.RoleUser)
}

// CreateTestAdmin creates an admin with a unique email.
func CreateTestAdmin(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return CreateTestUserWithRole(t, db, fmt.Sprintf("admin%d@test.com", nextID()), models.RoleAdmin)
}

// CreateTestUserWithRole creates a local user with the given email and role.
func CreateTestUserWithRole(t *testing.T, db *gorm.DB, email string, role models.Role) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	digest := string(hash)

	user := &models.User{
		Name:           fmt.Sprintf("Test User %d", nextID()),
		Email:          email,
		PasswordDigest: &digest,
		Role:           role,
		AuthProvider:   models.AuthProviderLocal,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestFederatedUser creates a Google-backed user without a password.
func CreateTestFederatedUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	user := &models.User{
		Name:         fmt.Sprintf("Google User %d", nextID()),
		Email:        fmt.Sprintf("google%d@test.com", nextID()),
		Role:         models.RoleUser,
		AuthProvider: models.AuthProviderGoogle,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create federated test user: %v", err)
	}
	return user
}

// SetSecurityState replaces the security row of a user.
func SetSecurityState(t *testing.T, db *gorm.DB, sec models.UserSecurity) {
	t.Helper()

	if err := db.Where("user_id = ?", sec.UserID).Delete(&models.UserSecurity{}).Error; err != nil {
		t.Fatalf("failed to clear security state: %v", err)
	}
	if err := db.Create(&sec).Error; err != nil {
		t.Fatalf("failed to set security state: %v", err)
	}
}

// GetSecurityState loads the security row of a user, failing if absent.
func GetSecurityState(t *testing.T, db *gorm.DB, userID string) *models.UserSecurity {
	t.Helper()

	var sec models.UserSecurity
	if err := db.Where("user_id = ?", userID).First(&sec).Error; err != nil {
		t.Fatalf("failed to load security state for %s: %v", userID, err)
	}
	return &sec
}
