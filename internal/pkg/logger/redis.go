package logger

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const slowRedisThreshold = 100 * time.Millisecond

// RedisHook 以 go-redis Hook 形式记录连接、命令与管道日志
type RedisHook struct{}

func NewRedisLogger() *RedisHook {
	return &RedisHook{}
}

// DialHook 只在建连失败时出声
func (s *RedisHook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		start := time.Now()
		conn, err := next(ctx, network, addr)
		if err != nil {
			log.ErrorContext(ctx, "Redis Dial Error",
				log.String("addr", addr),
				log.Duration("latency", time.Since(start)),
				log.Any("err", err),
			)
		}
		return conn, err
	}
}

// ProcessHook 记录单条命令：错误 + 慢命令，其余静默
func (s *RedisHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		elapsed := time.Since(start)

		if err != nil {
			if ignorableRedisErr(cmd.Name(), err) {
				return err
			}
			log.ErrorContext(ctx, "Redis Error",
				log.String("command", cmd.Name()),
				log.String("args", redactedArgs(cmd)),
				log.Duration("latency", elapsed),
				log.Any("err", err),
			)
			return err
		}

		if elapsed > slowRedisThreshold {
			log.WarnContext(ctx, "Redis Slow",
				log.String("command", cmd.Name()),
				log.String("args", redactedArgs(cmd)),
				log.Duration("latency", elapsed),
			)
		}
		return nil
	}
}

// ProcessPipelineHook 记录管道/批量命令执行情况
func (s *RedisHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmds)
		if err != nil {
			log.ErrorContext(ctx, "Redis Pipeline Error",
				log.Int("cmd_count", len(cmds)),
				log.Duration("latency", time.Since(start)),
				log.Any("err", err),
			)
		}
		return err
	}
}

// ignorableRedisErr 缓存未命中与客户端握手噪音不算错误
func ignorableRedisErr(cmdName string, err error) bool {
	if errors.Is(err, redis.Nil) {
		return true
	}
	if cmdName == "client" && strings.Contains(err.Error(), "setinfo") {
		return true
	}
	return false
}

// redactedArgs 凭据类命令不落参数
func redactedArgs(cmd redis.Cmder) string {
	if cmd.Name() == "auth" || cmd.Name() == "hello" {
		return "[PROTECTED]"
	}
	return fmt.Sprint(cmd.Args())
}
