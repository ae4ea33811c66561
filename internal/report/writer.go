package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultScratchFile 每次追加后写入的临时报告，进程中断时保留最近的结果
const DefaultScratchFile = ".report.temp.md"

// OutputName 由输入文件名得到报告文件名：去掉末尾的 ".xml" 再加 ".md"
func OutputName(input string) string {
	return strings.TrimSuffix(input, ".xml") + ".md"
}

// Persist 整体覆盖写入 path。先写同目录临时文件再重命名，
// 读者不会看到写了一半的文件
func Persist(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("写入 %s 失败: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("设置 %s 权限失败: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("保存 %s 失败: %w", path, err)
	}
	return nil
}
