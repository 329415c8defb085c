package filesystem

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// invalidNameChars 在任一主流平台上都不能出现在文件名中的字符
var invalidNameChars = []string{"<", ">", ":", "\"", "|", "?", "*", "\\", "/", "\x00"}

// ownerFileName 将所有者名转换为跨平台安全的文件名
//
// 名称被替换或截断时追加所有者哈希，不同所有者不会落到同一个文件。
func ownerFileName(owner string) string {
	name := owner
	for _, char := range invalidNameChars {
		name = strings.ReplaceAll(name, char, "_")
	}
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.Trim(name, " .")
	if len(name) > 200 {
		name = name[:200]
	}
	if name == "" {
		name = "unnamed"
	}
	if name != owner {
		name += "-" + ownerHash(owner)
	}
	return name + stateFileExt
}

// ownerHash 所有者名的短哈希（sha256 前 12 位十六进制）
func ownerHash(owner string) string {
	sum := sha256.Sum256([]byte(owner))
	return hex.EncodeToString(sum[:6])
}

// validateBasePath 拒绝过长或包含路径遍历的根目录
func validateBasePath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("path must not be empty")
	}
	if len(path) > 2000 {
		return fmt.Errorf("path too long: %d characters", len(path))
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("path traversal detected: %s", path)
		}
	}
	return nil
}
