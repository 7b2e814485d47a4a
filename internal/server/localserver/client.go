package localserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Call sends one command to the socket at path and returns the reply. A
// reply with OK false is returned together with an error holding its
// message.
func Call(ctx context.Context, path, cmd string, args ...string) (*Reply, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", path, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	line := strings.Join(append([]string{cmd}, args...), " ") + "\n"
	if _, err := conn.Write([]byte(line)); err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(conn)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("connection closed without a reply")
	}
	var reply Reply
	if err := json.Unmarshal(sc.Bytes(), &reply); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	if !reply.OK {
		return &reply, errors.New(reply.Error)
	}
	return &reply, nil
}
