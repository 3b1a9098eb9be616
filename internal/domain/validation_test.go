package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmailValidator_ValidateEmail(t *testing.T) {
	validator := NewEmailValidator()

	validEmails := []string{
		"user@example.com",
		"a@example.com",
		"user.name@example.com",
		"user-name@sub.example.com",
		"user123@example.co.uk",
		"USER@EXAMPLE.COM", // 验证前会转为小写
	}
	for _, email := range validEmails {
		assert.NoError(t, validator.ValidateEmail(email), "expected valid: %s", email)
	}

	invalidEmails := []string{
		"",
		"not-an-email",
		"user@",
		"@example.com",
		"user@invalid",       // 缺少顶级域名
		".user@example.com",  // 本地部分以点开头
		"user..a@example.com", // 连续的点
		"user@@example.com",
	}
	for _, email := range invalidEmails {
		assert.Error(t, validator.ValidateEmail(email), "expected invalid: %s", email)
	}
}

func TestEmailValidator_LengthLimits(t *testing.T) {
	validator := NewEmailValidator()

	// 本地部分超过 64 字符
	longLocal := strings.Repeat("a", 65) + "@example.com"
	assert.ErrorIs(t, validator.ValidateEmail(longLocal), ErrLocalPartTooLong)

	// 整体超过 254 字符
	longEmail := strings.Repeat("a", 250) + "@example.com"
	assert.ErrorIs(t, validator.ValidateEmail(longEmail), ErrEmailTooLong)
}

func TestEmailValidator_ValidateLocalPart(t *testing.T) {
	validator := NewEmailValidator()

	assert.NoError(t, validator.ValidateLocalPart("user"))
	assert.NoError(t, validator.ValidateLocalPart("a"))
	assert.NoError(t, validator.ValidateLocalPart("user.name-1_x"))

	assert.Error(t, validator.ValidateLocalPart(""))
	assert.Error(t, validator.ValidateLocalPart("user."))
	assert.Error(t, validator.ValidateLocalPart("user..name"))
	assert.Error(t, validator.ValidateLocalPart("user__name"))
}

func TestEmailValidator_ValidateDomain(t *testing.T) {
	validator := NewEmailValidator()

	assert.NoError(t, validator.ValidateDomain("example.com"))
	assert.NoError(t, validator.ValidateDomain("sub.example.com"))

	assert.Error(t, validator.ValidateDomain(""))
	assert.Error(t, validator.ValidateDomain("localhost"))
	assert.Error(t, validator.ValidateDomain("-example.com"))
}

func TestIsValidEmail(t *testing.T) {
	assert.True(t, IsValidEmail("user@example.com"))
	assert.False(t, IsValidEmail("not-an-email"))
}
