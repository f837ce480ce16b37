package server

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/raniellyferreira/redis-rdb-server/command"
	"github.com/raniellyferreira/redis-rdb-server/protocol"
)

// Close closes the client connection
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.conn.Close()
		c.server.clients.Delete(c.conn)
		c.server.metrics.RecordConnection(false)
		c.server.logger.Debug("Client disconnected", "client", c.id.String())
	})
}

// handle reads and executes requests until the peer disconnects
func (c *Client) handle() {
	defer c.server.wg.Done()
	defer c.Close()

	// seeding can copy a whole snapshot, keep it off the accept loop
	c.store = c.server.newStore()

	for {
		if c.ctx.Err() != nil {
			return
		}

		if c.server.readTimeout > 0 {
			c.conn.SetReadDeadline(time.Now().Add(c.server.readTimeout))
		}

		value, err := c.reader.ReadNext()
		if err != nil {
			var decodeErr *protocol.DecodeError
			if errors.As(err, &decodeErr) {
				// the reader already dropped the bad frame
				c.server.metrics.RecordError("protocol")
				c.writeError("ERR Protocol error: " + decodeErr.Message)
				continue
			}
			if c.ctx.Err() != nil || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return
			}
			c.server.logger.Debug("Client read failed", "client", c.id.String(), "error", err)
			return
		}

		c.execute(value)
	}
}

// execute classifies one request and writes exactly one reply
func (c *Client) execute(value protocol.Value) {
	c.server.commandCount.Add(1)

	cmd, err := command.Classify(value)
	if err != nil {
		c.server.metrics.RecordError("command")
		c.writeError(unclassifiedReply(err))
		return
	}

	start := time.Now()
	switch cmd := cmd.(type) {
	case command.Ping:
		c.writer.WritePONG()

	case command.Echo:
		c.writer.WriteBulkString(cmd.Arg)

	case command.Set:
		c.store.Set(cmd.Key, protocol.NewBulkString(cmd.Value), expiryDuration(cmd.Expiry))
		c.writer.WriteOK()

	case command.Get:
		if v := c.store.Get(cmd.Key); v != protocol.NullBulkString {
			c.writer.WriteValue(v)
		} else {
			c.writer.WriteNullBulkString()
		}

	case command.ConfigGet:
		if v, ok := c.server.config.Get(cmd.Key); ok {
			c.writer.WriteArray([]protocol.Value{
				protocol.NewBulkString(strings.ToLower(cmd.Key)),
				protocol.NewBulkString(v),
			})
		} else {
			c.writer.WriteArray(nil)
		}

	case command.Keys:
		c.writer.WriteArray(lo.Map(c.store.Keys(), func(key string, _ int) protocol.Value {
			return protocol.NewBulkString(key)
		}))
	}

	if err := c.writer.Flush(); err != nil {
		c.server.logger.Debug("Client write failed", "client", c.id.String(), "error", err)
		c.Close()
		return
	}
	c.server.metrics.RecordCommandProcessed(cmd.Name(), time.Since(start))
}

func (c *Client) writeError(s string) {
	c.server.errorCount.Add(1)
	// Clean error message by removing internal newlines which can break RESP protocol
	cleanMsg := strings.ReplaceAll(s, "\n", " ")
	cleanMsg = strings.ReplaceAll(cleanMsg, "\r", " ")
	c.writer.WriteError(cleanMsg)
	c.writer.Flush()
}

// unclassifiedReply renders a classification failure the way Redis words it
func unclassifiedReply(err error) string {
	var uerr *command.UnclassifiedError
	if !errors.As(err, &uerr) {
		return "ERR " + err.Error()
	}

	keyword := uerr.Keyword()
	switch {
	case keyword == "":
		return "ERR " + uerr.Reason
	case uerr.Reason == command.ReasonUnknown:
		return fmt.Sprintf("ERR unknown command '%s'", keyword)
	case uerr.Reason == command.ReasonWrongArity:
		return fmt.Sprintf("ERR wrong number of arguments for '%s' command", strings.ToLower(keyword))
	default:
		return "ERR " + uerr.Reason
	}
}

// expiryDuration converts PX milliseconds, saturating instead of overflowing
func expiryDuration(millis *uint64) *time.Duration {
	if millis == nil {
		return nil
	}
	d := time.Duration(math.MaxInt64)
	if *millis <= uint64(math.MaxInt64/int64(time.Millisecond)) {
		d = time.Duration(*millis) * time.Millisecond
	}
	return &d
}
