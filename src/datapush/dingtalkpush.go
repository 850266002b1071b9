package datapush

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// 常量定义
const (
	RETRY_TIMES    = 3
	RETRY_INTERVAL = 2 * time.Second
)

// 钉钉 API 响应结构体
type DingTalkResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// DingTalk 群机器人推送
type DingTalk struct {
	Webhook string // 机器人webhook地址(含access_token)
	Secret  string // 加签密钥，为空时不签名

	Client        *http.Client
	Now           func() time.Time
	RetryTimes    int
	RetryInterval time.Duration
}

func NewDingTalk(webhook, secret string) *DingTalk {
	return &DingTalk{
		Webhook:       webhook,
		Secret:        secret,
		Client:        &http.Client{Timeout: 10 * time.Second},
		Now:           time.Now,
		RetryTimes:    RETRY_TIMES,
		RetryInterval: RETRY_INTERVAL,
	}
}

// PushMarkdown 推送markdown消息，失败时按RetryTimes重试
func (d *DingTalk) PushMarkdown(title, text string) error {
	payload := map[string]interface{}{
		"msgtype": "markdown",
		"markdown": map[string]string{
			"title": title,
			"text":  text,
		},
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化请求体失败: %w", err)
	}

	return retry(func() error {
		return d.post(payloadBytes)
	}, d.RetryTimes, d.RetryInterval)
}

func (d *DingTalk) post(payload []byte) error {
	target, err := d.signedURL()
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("钉钉返回状态码 %d: %s", resp.StatusCode, respBody)
	}

	var result DingTalkResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	if result.ErrCode != 0 {
		return fmt.Errorf("推送消息失败: %s", result.ErrMsg)
	}
	return nil
}

// signedURL 配置了Secret时在webhook上附加timestamp和sign参数
func (d *DingTalk) signedURL() (string, error) {
	if d.Secret == "" {
		return d.Webhook, nil
	}

	u, err := url.Parse(d.Webhook)
	if err != nil {
		return "", fmt.Errorf("webhook地址无效: %w", err)
	}

	timestamp := strconv.FormatInt(d.Now().UnixMilli(), 10)
	q := u.Query()
	q.Set("timestamp", timestamp)
	q.Set("sign", sign(timestamp, d.Secret))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// sign HmacSHA256(timestamp+"\n"+secret)后base64
func sign(timestamp, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + "\n" + secret))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// 重试函数
func retry(fn func() error, times int, interval time.Duration) error {
	if times < 1 {
		times = 1
	}
	var err error
	for i := 0; i < times; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < times-1 {
			time.Sleep(interval)
		}
	}
	return fmt.Errorf("重试 %d 次后失败: %w", times, err)
}
