package email

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"FlightDelayExplorer/src/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rawMessage = "From: ops@example.com\r\n" +
	"Subject: =?gbk?B?ur2w4Mr9vt0=?=\r\n" +
	"Date: Thu, 01 Oct 2026 08:00:00 +0000\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=XYZ\r\n" +
	"\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"see attachment\r\n" +
	"--XYZ\r\n" +
	"Content-Type: text/csv\r\n" +
	"Content-Disposition: attachment; filename=flights.csv\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"b3JpZ2luLGRlc3QKSkZLLExBWAo=\r\n" +
	"--XYZ--\r\n"

func TestParseMessage(t *testing.T) {
	e, err := parseMessage(strings.NewReader(rawMessage))
	require.NoError(t, err)

	assert.Equal(t, "航班数据", e.Subject)
	assert.Equal(t, "ops@example.com", e.From)
	assert.Equal(t, 2026, e.Date.Year())
	require.Len(t, e.Attachments, 1)
	assert.Equal(t, "flights.csv", e.Attachments[0].Filename)
	assert.Equal(t, "origin,dest\nJFK,LAX\n", string(e.Attachments[0].Content))
}

func TestDecodeHeader(t *testing.T) {
	assert.Equal(t, "航班数据", decodeHeader("=?GB2312?B?ur2w4Mr9vt0=?="))
	assert.Equal(t, "plain subject", decodeHeader("plain subject"))
	assert.Equal(t, "héllo", decodeHeader("=?utf-8?Q?h=C3=A9llo?="))
}

func TestFilterLatestTargetEmail(t *testing.T) {
	base := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	emails := []*Email{
		{UID: 1, Subject: "航班数据 早班", Date: base},
		{UID: 2, Subject: "周报", Date: base.Add(2 * time.Hour)},
		{UID: 3, Subject: "航班数据 午班", Date: base.Add(time.Hour)},
	}

	got := filterLatestTargetEmail(emails, "航班数据")
	require.NotNil(t, got)
	assert.Equal(t, uint32(3), got.UID)

	assert.Nil(t, filterLatestTargetEmail(emails, "不存在"))
	assert.Nil(t, filterLatestTargetEmail(nil, "航班数据"))
}

func TestAttachmentHandler(t *testing.T) {
	dir := t.TempDir()
	h := NewAttachmentHandler(dir, "flights.csv")

	e := &Email{UID: 7, Attachments: []*Attachment{
		{Filename: "readme.txt", Content: []byte("x")},
		{Filename: "Flights_1001.CSV", Content: []byte("origin,dest\nJFK,LAX\n")},
	}}

	path, err := h.Handle(e)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "flights.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "origin,dest\nJFK,LAX\n", string(data))

	// 同一封邮件不重复处理
	path, err = h.Handle(e)
	require.NoError(t, err)
	assert.Empty(t, path)

	path, err = h.Handle(&Email{UID: 8, Attachments: []*Attachment{{Filename: "a.xlsx"}}})
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestAttachmentHandlerValidate(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "flights.csv")
	require.NoError(t, os.WriteFile(target, []byte("good data"), 0644))

	h := NewAttachmentHandler(dir, "flights.csv")
	h.Validate = func(filename string, data []byte) error {
		if !strings.HasPrefix(string(data), "origin,dest") {
			return errors.New("missing header")
		}
		return nil
	}

	e := &Email{UID: 9, Attachments: []*Attachment{{Filename: "flights.csv", Content: []byte("garbage")}}}
	path, err := h.Handle(e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing header")
	assert.Empty(t, path)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "good data", string(data))

	// 校验失败的邮件也不再重复处理
	path, err = h.Handle(e)
	require.NoError(t, err)
	assert.Empty(t, path)
}

type fakeMailService struct {
	emails       []*Email
	connectErr   error
	disconnected bool
}

func (f *fakeMailService) Connect() error                       { return f.connectErr }
func (f *fakeMailService) Disconnect()                          { f.disconnected = true }
func (f *fakeMailService) FetchUnreadEmails() ([]*Email, error) { return f.emails, nil }

func newTestLogger(t *testing.T) *storage.Logger {
	t.Helper()
	logger, err := storage.NewLogger(filepath.Join(t.TempDir(), "app.log"), "development")
	require.NoError(t, err)
	t.Cleanup(func() { _ = logger.Close() })
	return logger
}

func TestCheckAndProcessEmails(t *testing.T) {
	dir := t.TempDir()
	svc := &fakeMailService{emails: []*Email{
		{UID: 1, Subject: "航班数据", Date: time.Now(), Attachments: []*Attachment{
			{Filename: "flights.csv", Content: []byte("origin,dest\n")},
		}},
	}}

	path, err := CheckAndProcessEmails(svc, NewAttachmentHandler(dir, "flights.csv"), "航班数据", newTestLogger(t))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "flights.csv"), path)
	assert.True(t, svc.disconnected)

	path, err = CheckAndProcessEmails(&fakeMailService{}, NewAttachmentHandler(dir, "flights.csv"), "航班数据", newTestLogger(t))
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestCheckAndProcessEmailsConnectError(t *testing.T) {
	svc := &fakeMailService{connectErr: errors.New("refused")}
	_, err := CheckAndProcessEmails(svc, NewAttachmentHandler(t.TempDir(), "flights.csv"), "x", newTestLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refused")
	assert.False(t, svc.disconnected)
}

func TestSmtpAddress(t *testing.T) {
	addr, host := smtpAddress("smtp.qq.com")
	assert.Equal(t, "smtp.qq.com:465", addr)
	assert.Equal(t, "smtp.qq.com", host)

	addr, host = smtpAddress("smtp.example.com:587")
	assert.Equal(t, "smtp.example.com:587", addr)
	assert.Equal(t, "smtp.example.com", host)
}
