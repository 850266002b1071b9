// email_handler.go
package email

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// AttachmentHandler 把邮件中的航班数据附件保存为数据目录下的航班文件
// 保存后由文件监控或调用方重新加载数据集
type AttachmentHandler struct {
	DataDir       string
	TargetFile    string // 保存的文件名，如 flights.xlsx
	// Validate 保存前校验附件内容，为nil时不校验
	Validate      func(filename string, data []byte) error
	processedUIDs map[uint32]bool // 已处理的邮件
	mu            sync.RWMutex
}

func NewAttachmentHandler(dataDir, targetFile string) *AttachmentHandler {
	return &AttachmentHandler{
		DataDir:       dataDir,
		TargetFile:    targetFile,
		processedUIDs: make(map[uint32]bool),
	}
}

func (h *AttachmentHandler) isProcessed(uid uint32) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.processedUIDs[uid]
}

func (h *AttachmentHandler) markAsProcessed(uid uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.processedUIDs[uid] = true
}

// Handle 保存与目标文件扩展名相同的第一个附件，返回保存路径
// 已处理或没有匹配附件时返回空路径
func (h *AttachmentHandler) Handle(email *Email) (string, error) {
	if email == nil || h.isProcessed(email.UID) {
		return "", nil
	}

	want := strings.ToLower(filepath.Ext(h.TargetFile))
	var found *Attachment
	for _, a := range email.Attachments {
		if strings.ToLower(filepath.Ext(a.Filename)) == want {
			found = a
			break
		}
	}
	if found == nil {
		return "", nil
	}

	// 校验失败的附件不覆盖现有数据文件
	if h.Validate != nil {
		if err := h.Validate(found.Filename, found.Content); err != nil {
			h.markAsProcessed(email.UID)
			return "", fmt.Errorf("附件 %s 不是有效的航班数据: %w", found.Filename, err)
		}
	}

	if err := os.MkdirAll(h.DataDir, 0755); err != nil {
		return "", fmt.Errorf("创建目录失败: %w", err)
	}

	// 先写临时文件再改名，避免加载到写了一半的文件
	target := filepath.Join(h.DataDir, h.TargetFile)
	tmp := target + ".part"
	if err := os.WriteFile(tmp, found.Content, 0644); err != nil {
		return "", fmt.Errorf("保存附件失败: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("保存附件失败: %w", err)
	}

	h.markAsProcessed(email.UID)
	return target, nil
}
