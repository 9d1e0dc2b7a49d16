package parser

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"runtime/debug"
	"slices"
	"strconv"

	log "github.com/sirupsen/logrus"

	"minikv/interface/resp"
	"minikv/resp/reply"
)

// Protocol limits, a peer can not make the server allocate beyond these.
const (
	// MaxBulkLen limits a single bulk string (512MB, same as redis proto-max-bulk-len)
	MaxBulkLen = 512 << 20
	// MaxArrayLen limits the number of elements in one array
	MaxArrayLen = 1 << 20
	// MaxLineLen limits simple strings, errors, integers and headers
	MaxLineLen = 64 << 10
	// MaxDepth limits array nesting
	MaxDepth = 8

	bulkChunk = 64 << 10
)

var (
	// ErrProtocol means the bytes on the wire do not match the encoding
	ErrProtocol = errors.New("protocol error")
	// ErrConnectionReset means the peer went away in the middle of a frame
	ErrConnectionReset = errors.New("connection reset")
)

// Payload stores redis.Reply or error
type Payload struct {
	Data resp.Reply
	Err  error
}

// Parser reads frames from a byte stream. Partial reads are accumulated in
// its buffer and frames already buffered are served without touching the reader.
type Parser struct {
	reader *bufio.Reader
}

// NewParser creates a Parser reading from r
func NewParser(r io.Reader) *Parser {
	return &Parser{reader: bufio.NewReader(r)}
}

// Buffered returns the number of bytes received but not parsed yet
func (p *Parser) Buffered() int {
	return p.reader.Buffered()
}

// ReadFrame reads exactly one frame.
// It returns io.EOF when the stream ends cleanly between two frames,
// an error wrapping ErrConnectionReset when it ends inside a frame
// and an error wrapping ErrProtocol on malformed input.
func (p *Parser) ReadFrame() (resp.Reply, error) {
	tag, err := p.reader.ReadByte()
	if err != nil {
		return nil, err
	}
	return p.readFrame(tag, 0)
}

func (p *Parser) readFrame(tag byte, depth int) (resp.Reply, error) {
	switch tag {
	case '+':
		line, err := p.readLine()
		if err != nil {
			return nil, err
		}
		return reply.MakeStatusReply(string(line)), nil
	case '-':
		line, err := p.readLine()
		if err != nil {
			return nil, err
		}
		return reply.MakeErrReply(string(line)), nil
	case ':':
		line, err := p.readLine()
		if err != nil {
			return nil, err
		}
		if len(line) == 0 || line[0] == '+' {
			return nil, fmt.Errorf("%w: invalid integer %q", ErrProtocol, line)
		}
		val, err := strconv.ParseInt(string(line), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid integer %q", ErrProtocol, line)
		}
		return reply.MakeIntReply(val), nil
	case '$':
		return p.readBulk()
	case '*':
		return p.readArray(depth)
	default:
		return nil, fmt.Errorf("%w: unexpected type byte %q", ErrProtocol, tag)
	}
}

// readBulk parses the rest of "$<len>\r\n<bytes>\r\n"
func (p *Parser) readBulk() (resp.Reply, error) {
	n, err := p.readLength(MaxBulkLen)
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return reply.MakeNullBulkReply(), nil
	}
	// the buffer grows with the bytes received, not with the declared length
	body := make([]byte, 0, min(n, bulkChunk))
	for len(body) < n {
		next := min(n, len(body)+bulkChunk)
		body = slices.Grow(body, next-len(body))
		if _, err := io.ReadFull(p.reader, body[len(body):next]); err != nil {
			return nil, midFrame(err)
		}
		body = body[:next]
	}
	var term [2]byte
	if _, err := io.ReadFull(p.reader, term[:]); err != nil {
		return nil, midFrame(err)
	}
	if term[0] != '\r' || term[1] != '\n' {
		return nil, fmt.Errorf("%w: invalid bulk terminator", ErrProtocol)
	}
	return reply.MakeBulkReply(body), nil
}

// readArray parses the rest of "*<n>\r\n" followed by n frames
func (p *Parser) readArray(depth int) (resp.Reply, error) {
	n, err := p.readLength(MaxArrayLen)
	if err != nil {
		return nil, err
	}
	if n == -1 {
		return reply.MakeNullBulkReply(), nil
	}
	if depth+1 > MaxDepth {
		return nil, fmt.Errorf("%w: array nesting exceeds %d", ErrProtocol, MaxDepth)
	}
	items := make([]resp.Reply, 0, min(n, 1024))
	for i := 0; i < n; i++ {
		tag, err := p.reader.ReadByte()
		if err != nil {
			return nil, midFrame(err)
		}
		item, err := p.readFrame(tag, depth+1)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return reply.MakeArrayReply(items), nil
}

// readLength parses a length header, -1 is the null marker
func (p *Parser) readLength(limit int) (int, error) {
	line, err := p.readLine()
	if err != nil {
		return 0, err
	}
	if len(line) == 0 || line[0] == '+' {
		return 0, fmt.Errorf("%w: invalid length %q", ErrProtocol, line)
	}
	n, err := strconv.ParseInt(string(line), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid length %q", ErrProtocol, line)
	}
	if n == -1 {
		return -1, nil
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative length %d", ErrProtocol, n)
	}
	if n > int64(limit) {
		return 0, fmt.Errorf("%w: length %d exceeds limit %d", ErrProtocol, n, limit)
	}
	return int(n), nil
}

// readLine reads up to and including CRLF and returns the line without it
func (p *Parser) readLine() ([]byte, error) {
	var buf []byte
	for {
		frag, err := p.reader.ReadSlice('\n')
		if err == nil {
			buf = append(buf, frag...)
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			buf = append(buf, frag...)
			if len(buf) > MaxLineLen {
				return nil, fmt.Errorf("%w: line exceeds limit %d", ErrProtocol, MaxLineLen)
			}
			continue
		}
		return nil, midFrame(err)
	}
	if len(buf) > MaxLineLen+2 {
		return nil, fmt.Errorf("%w: line exceeds limit %d", ErrProtocol, MaxLineLen)
	}
	if len(buf) < 2 || buf[len(buf)-2] != '\r' {
		return nil, fmt.Errorf("%w: missing CRLF", ErrProtocol)
	}
	return buf[:len(buf)-2], nil
}

// midFrame turns an EOF inside a frame into ErrConnectionReset
func midFrame(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: unexpected EOF", ErrConnectionReset)
	}
	return err
}

// ParseStream reads data from io.Reader and send payloads through channel.
// The channel is closed after the first error, io.EOF included.
func ParseStream(reader io.Reader) <-chan *Payload {
	ch := make(chan *Payload)
	go parse0(reader, ch)
	return ch
}

func parse0(reader io.Reader, ch chan<- *Payload) {
	defer func() {
		if err := recover(); err != nil {
			log.Error(err, string(debug.Stack()))
			ch <- &Payload{Err: fmt.Errorf("%w: %v", ErrProtocol, err)}
			close(ch)
		}
	}()
	p := NewParser(reader)
	for {
		frame, err := p.ReadFrame()
		if err != nil {
			ch <- &Payload{Err: err}
			close(ch)
			return
		}
		ch <- &Payload{Data: frame}
	}
}

// ParseBytes reads every frame in data
func ParseBytes(data []byte) ([]resp.Reply, error) {
	p := NewParser(bytes.NewReader(data))
	var result []resp.Reply
	for {
		frame, err := p.ReadFrame()
		if err == io.EOF {
			return result, nil
		}
		if err != nil {
			return nil, err
		}
		result = append(result, frame)
	}
}

// ParseOne reads the first frame in data
func ParseOne(data []byte) (resp.Reply, error) {
	p := NewParser(bytes.NewReader(data))
	frame, err := p.ReadFrame()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: no frame", ErrConnectionReset)
	}
	return frame, err
}
