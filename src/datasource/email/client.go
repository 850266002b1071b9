// client.go
package email

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"io"
	"mime"
	"net/smtp"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/jordan-wright/email"
	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"

	"FlightDelayExplorer/src/config"
	"FlightDelayExplorer/src/storage"
)

const (
	MaxFetchMessages   = 100            // 单次最大获取邮件数量
	FetchBufferSize    = 10             // 邮件获取通道缓冲区大小
	RecentMailDuration = 24 * time.Hour // 只查找这个时间范围内的未读邮件
)

// MailService 邮件服务接口
type MailService interface {
	Connect() error
	Disconnect()
	FetchUnreadEmails() ([]*Email, error)
}

// EmailHandler 邮件处理器接口
type EmailHandler interface {
	Handle(email *Email) (string, error)
}

// Email 邮件基础数据
type Email struct {
	UID         uint32    // IMAP UID
	Date        time.Time // 发送时间
	From        string    // 发件人(已解码)
	Subject     string    // 主题(已解码)
	Attachments []*Attachment
}

// Attachment 邮件附件
type Attachment struct {
	Filename string // 文件名(已解码)
	Content  []byte
}

// EmailClient IMAP邮件客户端
type EmailClient struct {
	server    string // 服务器地址(含端口)，如 imap.qq.com:993
	username  string
	password  string // 密码或授权码
	client    *client.Client
	mu        sync.Mutex
	connected bool
}

func NewEmailClient(server, username, password string) *EmailClient {
	return &EmailClient{
		server:   server,
		username: username,
		password: password,
	}
}

// Connect 建立TLS连接并登录，已有可用连接时直接复用
func (s *EmailClient) Connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		if _, err := s.client.Capability(); err == nil {
			return nil
		}
		s.client.Logout()
		s.client = nil
		s.connected = false
	}

	c, err := client.DialTLS(s.server, nil)
	if err != nil {
		return fmt.Errorf("连接服务器失败: %w", err)
	}
	if err := c.Login(s.username, s.password); err != nil {
		c.Logout()
		return fmt.Errorf("登录失败: %w", err)
	}

	s.client = c
	s.connected = true
	return nil
}

// Disconnect 断开连接
func (s *EmailClient) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		s.client.Logout()
		s.client = nil
	}
	s.connected = false
}

// FetchUnreadEmails 获取INBOX中最近24小时的未读邮件
func (s *EmailClient) FetchUnreadEmails() ([]*Email, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.connected {
		return nil, fmt.Errorf("未连接到邮件服务器")
	}
	if _, err := s.client.Select("INBOX", false); err != nil {
		return nil, fmt.Errorf("选择邮箱失败: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Since = time.Now().Add(-RecentMailDuration)

	ids, err := s.client.Search(criteria)
	if err != nil {
		return nil, fmt.Errorf("搜索邮件失败: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > MaxFetchMessages {
		// 保留最新的一批
		ids = ids[len(ids)-MaxFetchMessages:]
	}

	return s.fetchMessages(ids)
}

func (s *EmailClient) fetchMessages(ids []uint32) ([]*Email, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{
		imap.FetchEnvelope,
		imap.FetchFlags,
		imap.FetchInternalDate,
		imap.FetchUid,
		section.FetchItem(),
	}

	messages := make(chan *imap.Message, FetchBufferSize)
	done := make(chan error, 1)
	go func() {
		done <- s.client.Fetch(seqset, items, messages)
	}()

	var emails []*Email
	for msg := range messages {
		r := msg.GetBody(section)
		if r == nil {
			continue
		}
		e, err := parseMessage(r)
		if err != nil {
			continue
		}
		e.UID = msg.Uid
		if e.Date.IsZero() {
			e.Date = msg.InternalDate
		}
		emails = append(emails, e)
	}

	if err := <-done; err != nil {
		return nil, fmt.Errorf("获取邮件内容失败: %w", err)
	}
	return emails, nil
}

// parseMessage 解析原始邮件，提取头信息和附件
func parseMessage(r io.Reader) (*Email, error) {
	mr, err := mail.CreateReader(r)
	if err != nil {
		return nil, fmt.Errorf("创建邮件阅读器失败: %w", err)
	}
	defer mr.Close()

	header := mr.Header
	date, _ := header.Date()

	e := &Email{
		Date:    date,
		From:    decodeHeader(header.Get("From")),
		Subject: decodeHeader(header.Get("Subject")),
	}

	for {
		p, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// 跳过无法解析的部分
			continue
		}

		h, ok := p.Header.(*mail.AttachmentHeader)
		if !ok {
			continue
		}
		filename, err := h.Filename()
		if err != nil || filename == "" {
			continue
		}

		var buf bytes.Buffer
		if _, err := io.Copy(&buf, p.Body); err != nil {
			return nil, fmt.Errorf("读取附件 %s 失败: %w", filename, err)
		}
		e.Attachments = append(e.Attachments, &Attachment{
			Filename: decodeHeader(filename),
			Content:  buf.Bytes(),
		})
	}
	return e, nil
}

// decodeHeader 解码 =?charset?encoding?text?= 格式的头，失败时返回原文
func decodeHeader(header string) string {
	decoder := mime.WordDecoder{CharsetReader: charsetReader}
	decoded, err := decoder.DecodeHeader(header)
	if err != nil {
		return header
	}
	return decoded
}

// charsetReader GBK/GB2312转UTF-8，其他编码原样返回
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToLower(charset) {
	case "gbk", "gb2312", "gb18030":
		return transform.NewReader(input, simplifiedchinese.GB18030.NewDecoder()), nil
	default:
		return input, nil
	}
}

// SendReport 通过SMTP(隐式TLS)把报表作为附件发出
func SendReport(cfg *config.Config, subject, body, attachmentPath string) error {
	if len(cfg.SendEmail.Recipients) == 0 {
		return fmt.Errorf("未配置收件人")
	}

	e := email.NewEmail()
	e.From = cfg.SendEmail.Username
	e.To = cfg.SendEmail.Recipients
	e.Subject = subject
	e.Text = []byte(body)

	if attachmentPath != "" {
		if _, err := os.Stat(attachmentPath); err != nil {
			return fmt.Errorf("附件文件不存在: %w", err)
		}
		if _, err := e.AttachFile(attachmentPath); err != nil {
			return fmt.Errorf("附件添加失败: %w", err)
		}
	}

	smtpAddr, host := smtpAddress(cfg.SendEmail.Server)
	err := e.SendWithTLS(
		smtpAddr,
		smtp.PlainAuth("", cfg.SendEmail.Username, cfg.SendEmail.Password, host),
		&tls.Config{ServerName: host},
	)
	if err != nil {
		return fmt.Errorf("邮件发送失败(%s): %w", smtpAddr, err)
	}
	return nil
}

// smtpAddress 没有端口时默认465
func smtpAddress(server string) (addr, host string) {
	addr = server
	if !strings.Contains(addr, ":") {
		addr += ":465"
	}
	host = addr[:strings.LastIndex(addr, ":")]
	return addr, host
}

// CheckAndProcessEmails 检查邮箱，交给handler处理主题匹配的最新一封邮件
// 返回保存的文件路径，没有新数据时为空
func CheckAndProcessEmails(mailService MailService, handler EmailHandler, subject string, logger *storage.Logger) (string, error) {
	startTime := time.Now()
	logger.Debug("开始检查邮箱")

	if err := mailService.Connect(); err != nil {
		return "", fmt.Errorf("连接失败: %w", err)
	}
	defer mailService.Disconnect()

	emails, err := mailService.FetchUnreadEmails()
	if err != nil {
		return "", fmt.Errorf("获取邮件失败: %w", err)
	}
	if len(emails) == 0 {
		logger.Debug("没有新邮件")
		return "", nil
	}

	target := filterLatestTargetEmail(emails, subject)
	if target == nil {
		logger.Debug("没有目标邮件", "unread", len(emails), "subject", subject)
		return "", nil
	}

	path, err := handler.Handle(target)
	if err != nil {
		return "", fmt.Errorf("处理邮件失败(UID:%d): %w", target.UID, err)
	}
	logger.Info("邮件检查完成", "uid", target.UID, "saved", path, "duration", time.Since(startTime).String())
	return path, nil
}

// filterLatestTargetEmail 主题包含keyword的邮件中最新的一封
func filterLatestTargetEmail(emails []*Email, keyword string) *Email {
	var targets []*Email
	for _, e := range emails {
		if e != nil && strings.Contains(e.Subject, keyword) {
			targets = append(targets, e)
		}
	}
	if len(targets) == 0 {
		return nil
	}

	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].Date.After(targets[j].Date)
	})
	return targets[0]
}
