package storage

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel 定义日志级别类型
type LogLevel int

// 日志级别常量定义
const (
	DEBUG   LogLevel = iota // 调试信息
	INFO                    // 普通信息
	WARNING                 // 警告信息
	ERROR                   // 错误信息
	FATAL                   // 致命错误
)

// Logger 日志记录器结构体
// 底层使用zap输出JSON日志，同时把每条日志推送给订阅者
type Logger struct {
	filename string
	file     *os.File   // 日志文件句柄
	fileMu   sync.Mutex // 保护file
	zl       *zap.SugaredLogger

	subMu       sync.Mutex
	subscribers []chan string // 订阅者通道列表
}

// NewLogger 创建新的日志记录器
// 参数:
//
//	filename: 日志文件路径
//	appEnv: 运行环境，"production"时不输出DEBUG级别
//
// 返回值:
//
//	*Logger: 日志记录器实例
//	error: 创建过程中的错误
func NewLogger(filename, appEnv string) (*Logger, error) {
	file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	l := &Logger{
		filename: filename,
		file:     file,
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	level := zapcore.DebugLevel
	if appEnv == "production" {
		level = zapcore.InfoLevel
	}

	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(&fileWriter{l: l}),
		level,
	)
	l.zl = zap.New(zapcore.NewTee(fileCore, &subscriberCore{LevelEnabler: level, l: l})).Sugar()

	return l, nil
}

// fileWriter 将zap输出写入当前日志文件，轮转后自动切换到新文件
type fileWriter struct {
	l *Logger
}

func (w *fileWriter) Write(p []byte) (int, error) {
	w.l.fileMu.Lock()
	defer w.l.fileMu.Unlock()

	if w.l.file == nil {
		return 0, os.ErrClosed
	}
	return w.l.file.Write(p)
}

func (w *fileWriter) Sync() error {
	w.l.fileMu.Lock()
	defer w.l.fileMu.Unlock()

	if w.l.file == nil {
		return nil
	}
	return w.l.file.Sync()
}

// Close 刷新缓冲并关闭日志文件
func (l *Logger) Close() error {
	_ = l.zl.Sync()

	l.fileMu.Lock()
	defer l.fileMu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

// Reopen 重新打开一个文件
// 参数：
// filename：新文件的路径
// 返回值：
// error：重建文件时的错误
func (l *Logger) Reopen(filename string) error {
	l.fileMu.Lock()
	defer l.fileMu.Unlock()

	if l.file != nil {
		_ = l.file.Close()
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		l.file = nil
		return err
	}
	l.file = file
	l.filename = filename
	return nil
}

// Log 记录日志方法
// 参数:
//
//	level: 日志级别
//	message: 日志消息内容
//	keysAndValues: 结构化字段，键值交替
func (l *Logger) Log(level LogLevel, message string, keysAndValues ...interface{}) {
	switch level {
	case DEBUG:
		l.zl.Debugw(message, keysAndValues...)
	case INFO:
		l.zl.Infow(message, keysAndValues...)
	case WARNING:
		l.zl.Warnw(message, keysAndValues...)
	case ERROR:
		l.zl.Errorw(message, keysAndValues...)
	case FATAL:
		l.zl.Fatalw(message, keysAndValues...)
	default:
		l.zl.Infow(message, keysAndValues...)
	}
}

// subscriberCore 把日志条目连同结构化字段格式化为一行文本推送给订阅者
type subscriberCore struct {
	zapcore.LevelEnabler
	l      *Logger
	fields []zapcore.Field
}

func (c *subscriberCore) With(fields []zapcore.Field) zapcore.Core {
	all := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	all = append(all, c.fields...)
	all = append(all, fields...)
	return &subscriberCore{LevelEnabler: c.LevelEnabler, l: c.l, fields: all}
}

func (c *subscriberCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return ce.AddCore(entry, c)
	}
	return ce
}

func (c *subscriberCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	c.l.publish(formatLine(entry, append(c.fields[:len(c.fields):len(c.fields)], fields...)))
	return nil
}

func (c *subscriberCore) Sync() error { return nil }

// formatLine 输出 "[时间] 级别: 消息 key=value ..."
func formatLine(entry zapcore.Entry, fields []zapcore.Field) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s",
		entry.Time.Format("2006-01-02 15:04:05"),
		fromZapLevel(entry.Level).String(),
		entry.Message)

	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
		if v, ok := enc.Fields[f.Key]; ok {
			fmt.Fprintf(&b, " %s=%v", f.Key, v)
		}
	}
	return b.String()
}

// publish 通知所有订阅者，通道已满时丢弃
func (l *Logger) publish(line string) {
	l.subMu.Lock()
	defer l.subMu.Unlock()

	for _, ch := range l.subscribers {
		select {
		case ch <- line:
		default:
		}
	}
}

// CheckRotate 日志文件超过maxSize(如"10 * 1024 * 1024")时轮转
func (l *Logger) CheckRotate(maxSize string) error {
	limit := eval(maxSize)
	if limit <= 1 {
		return nil
	}

	l.fileMu.Lock()
	defer l.fileMu.Unlock()

	if l.file == nil {
		return nil
	}

	info, err := l.file.Stat()
	if err != nil {
		return fmt.Errorf("读取日志文件信息失败: %w", err)
	}

	if info.Size() > limit {
		return l.rotateLocked()
	}
	return nil
}

func (l *Logger) rotateLocked() error {
	if err := l.file.Close(); err != nil {
		return err
	}
	l.file = nil

	rotated := fmt.Sprintf("%s.%s", l.filename, time.Now().Format("20060102150405"))
	renameErr := os.Rename(l.filename, rotated)

	// 改名失败也要重新打开，继续写原文件
	file, err := os.OpenFile(l.filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = file

	if renameErr != nil {
		return fmt.Errorf("日志轮转失败: %w", renameErr)
	}
	return nil
}

// Subscribe 订阅日志消息
// 返回值:
//
//	<-chan string: 只读通道，用于接收日志消息
func (l *Logger) Subscribe() <-chan string {
	l.subMu.Lock()
	defer l.subMu.Unlock()

	ch := make(chan string, 100)
	l.subscribers = append(l.subscribers, ch)
	return ch
}

// Unsubscribe 取消订阅并关闭通道
func (l *Logger) Unsubscribe(sub <-chan string) {
	l.subMu.Lock()
	defer l.subMu.Unlock()

	for i, ch := range l.subscribers {
		if ch == sub {
			l.subscribers = append(l.subscribers[:i], l.subscribers[i+1:]...)
			close(ch)
			return
		}
	}
}

// String 实现LogLevel的String方法
// 返回值:
//
//	string: 日志级别的字符串表示
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

func fromZapLevel(level zapcore.Level) LogLevel {
	switch level {
	case zapcore.DebugLevel:
		return DEBUG
	case zapcore.InfoLevel:
		return INFO
	case zapcore.WarnLevel:
		return WARNING
	case zapcore.ErrorLevel:
		return ERROR
	default:
		return FATAL
	}
}

func eval(expr string) int64 {
	parts := strings.Split(expr, "*")
	var result int64 = 1
	for _, part := range parts {
		num, _ := strconv.Atoi(strings.TrimSpace(part))
		result *= int64(num)
	}
	return result
}

// 以下是快捷日志方法
func (l *Logger) Debug(msg string, kv ...interface{})   { l.Log(DEBUG, msg, kv...) }   // 记录调试信息
func (l *Logger) Info(msg string, kv ...interface{})    { l.Log(INFO, msg, kv...) }    // 记录普通信息
func (l *Logger) Warning(msg string, kv ...interface{}) { l.Log(WARNING, msg, kv...) } // 记录警告信息
func (l *Logger) Error(msg string, kv ...interface{})   { l.Log(ERROR, msg, kv...) }   // 记录错误信息
func (l *Logger) Fatal(msg string, kv ...interface{})   { l.Log(FATAL, msg, kv...) }   // 记录致命错误并退出
