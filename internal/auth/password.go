// Package auth 提供密码策略、密码哈希和邮箱确认密钥
package auth

import (
	"bufio"
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/user/papertiger/internal/apperr"
	"golang.org/x/crypto/bcrypt"
)

const (
	MinPasswordLength   = 8
	MaxPasswordBytes    = 72 // bcrypt 只接受 72 字节以内
	MaxSimilarity       = 0.7
	passwordField       = "password"
	maxComparedAttrSize = 4096
)

//go:embed common_passwords.txt
var commonPasswordsRaw string

var (
	commonOnce      sync.Once
	commonPasswords map[string]struct{}
)

// UserAttributes 参与相似度检查的用户属性
type UserAttributes struct {
	Username string
	Email    string
}

// PasswordRule 单条密码规则，返回空字符串表示通过
type PasswordRule func(password string, attrs UserAttributes) string

// DefaultRules 默认密码规则，顺序即错误信息的顺序
var DefaultRules = []PasswordRule{
	SimilarityRule,
	MinLengthRule,
	MaxLengthRule,
	CommonPasswordRule,
	NumericRule,
	StrongRule,
}

// ValidatePassword 执行全部规则，收集所有失败原因
func ValidatePassword(password string, attrs UserAttributes, rules ...PasswordRule) error {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	verr := &apperr.ValidationError{}
	for _, rule := range rules {
		if msg := rule(password, attrs); msg != "" {
			verr.Add(passwordField, msg)
		}
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

// MinLengthRule 最小长度
func MinLengthRule(password string, _ UserAttributes) string {
	if len([]rune(password)) < MinPasswordLength {
		return fmt.Sprintf("This password is too short. It must contain at least %d characters.", MinPasswordLength)
	}
	return ""
}

// MaxLengthRule 最大长度，按字节计算
func MaxLengthRule(password string, _ UserAttributes) string {
	if len(password) > MaxPasswordBytes {
		return fmt.Sprintf("This password is too long. It must contain at most %d bytes.", MaxPasswordBytes)
	}
	return ""
}

// NumericRule 不允许纯数字
func NumericRule(password string, _ UserAttributes) string {
	if password == "" {
		return ""
	}
	for _, r := range password {
		if !unicode.IsDigit(r) {
			return ""
		}
	}
	return "This password is entirely numeric."
}

// StrongRule 至少一个大写字母和一个数字
func StrongRule(password string, _ UserAttributes) string {
	var hasUpper, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasDigit {
		return "Password must contain at least one uppercase letter and one number."
	}
	return ""
}

// CommonPasswordRule 拒绝常见密码，比较时忽略大小写
func CommonPasswordRule(password string, _ UserAttributes) string {
	commonOnce.Do(loadCommonPasswords)
	if _, ok := commonPasswords[strings.ToLower(strings.TrimSpace(password))]; ok {
		return "This password is too common."
	}
	return ""
}

// SimilarityRule 密码不能和用户名、邮箱过于相似
func SimilarityRule(password string, attrs UserAttributes) string {
	if password == "" || len(password) > MaxPasswordBytes {
		return ""
	}
	pw := strings.ToLower(password)

	candidates := map[string]string{
		"username": attrs.Username,
		"email":    attrs.Email,
	}
	for _, name := range []string{"username", "email"} {
		value := strings.ToLower(candidates[name])
		if value == "" || len(value) > maxComparedAttrSize {
			continue
		}
		parts := []string{value}
		if name == "email" {
			if at := strings.IndexByte(value, '@'); at > 0 {
				parts = append(parts, value[:at])
			}
		}
		for _, part := range parts {
			if similarity(pw, part) >= MaxSimilarity {
				return fmt.Sprintf("The password is too similar to the %s.", name)
			}
		}
	}
	return ""
}

func loadCommonPasswords() {
	commonPasswords = make(map[string]struct{})
	scanner := bufio.NewScanner(strings.NewReader(commonPasswordsRaw))
	for scanner.Scan() {
		line := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		commonPasswords[line] = struct{}{}
	}
}

// similarity Ratcliff/Obershelp 相似度，2*M/T
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchingRunes(ra, rb)) / float64(total)
}

// matchingRunes 递归累加最长公共子串两侧的匹配长度
func matchingRunes(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	ai, bi, size := longestCommon(a, b)
	if size == 0 {
		return 0
	}
	return size + matchingRunes(a[:ai], b[:bi]) + matchingRunes(a[ai+size:], b[bi+size:])
}

func longestCommon(a, b []rune) (int, int, int) {
	bestA, bestB, best := 0, 0, 0
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > best {
					best = cur[j]
					bestA, bestB = i-cur[j], j-cur[j]
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return bestA, bestB, best
}

// HashPassword bcrypt 哈希
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword 验证密码
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
