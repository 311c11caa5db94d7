package anidb

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	udpAddr = "api.anidb.net:9000"

	// udpSpacing is the minimum gap between UDP packets. AniDB bans
	// clients that send faster than one packet per two seconds.
	udpSpacing = 2500 * time.Millisecond

	// sessionIdle is how long a UDP session is reused before logging in
	// again.
	sessionIdle = 20 * time.Minute
)

var (
	ErrUDPAuth      = errors.New("anidb UDP authentication failed")
	ErrUDPBanned    = errors.New("anidb UDP client banned")
	ErrFileUnknown  = errors.New("anidb file not in database")
	ErrUDPProtocol  = errors.New("anidb UDP protocol error")
	errNoCredential = errors.New("anidb UDP credentials not configured")
)

// fmask/amask request: aid, eid, gid, epno, English episode name, romaji
// episode name, anime year, anime type.
const (
	fileFmask = "7800000000"
	fileAmask = "C0C0C0"
)

// udpClient holds one authenticated AniDB UDP session. All commands are
// serialized and paced; the protocol allows no concurrency per client.
type udpClient struct {
	username   string
	password   string
	clientName string
	clientVer  string
	logger     zerolog.Logger

	mu       sync.Mutex
	conn     net.Conn
	session  string
	lastSend time.Time
	lastUsed time.Time
}

func newUDPClient(username, password, clientName, clientVer string, logger zerolog.Logger) *udpClient {
	return &udpClient{
		username:   username,
		password:   password,
		clientName: clientName,
		clientVer:  clientVer,
		logger:     logger,
	}
}

func (u *udpClient) configured() bool {
	return u.username != "" && u.password != "" && u.clientName != "" && u.clientVer != ""
}

// FileByHash asks AniDB for the file record matching (ed2k, size).
func (u *udpClient) FileByHash(ctx context.Context, ed2k string, size int64) (*FileRecord, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.configured() {
		return nil, errNoCredential
	}
	if err := u.ensureSession(ctx); err != nil {
		return nil, err
	}

	cmd := fmt.Sprintf("FILE size=%d&ed2k=%s&fmask=%s&amask=%s&s=%s",
		size, ed2k, fileFmask, fileAmask, u.session)
	code, payload, err := u.exchange(ctx, cmd)
	if err != nil {
		return nil, err
	}

	switch code {
	case 220: // FILE
		return parseFileRecord(payload)
	case 320: // NO SUCH FILE
		return nil, ErrFileUnknown
	case 501, 506: // LOGIN FIRST / INVALID SESSION
		u.session = ""
		return nil, fmt.Errorf("%w: session expired", ErrUDPProtocol)
	case 555, 601, 602: // BANNED / SERVER DOWN / SERVER BUSY
		return nil, ErrUDPBanned
	default:
		return nil, fmt.Errorf("%w: code %d", ErrUDPProtocol, code)
	}
}

// EpisodeByID asks AniDB for one episode record by EID.
func (u *udpClient) EpisodeByID(ctx context.Context, eid int) (*EpisodeRecord, error) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if !u.configured() {
		return nil, errNoCredential
	}
	if err := u.ensureSession(ctx); err != nil {
		return nil, err
	}

	code, payload, err := u.exchange(ctx, fmt.Sprintf("EPISODE eid=%d&s=%s", eid, u.session))
	if err != nil {
		return nil, err
	}

	switch code {
	case 240: // EPISODE
		return parseEpisodeRecord(payload)
	case 340: // NO SUCH EPISODE
		return nil, ErrFileUnknown
	case 501, 506:
		u.session = ""
		return nil, fmt.Errorf("%w: session expired", ErrUDPProtocol)
	case 555, 601, 602:
		return nil, ErrUDPBanned
	default:
		return nil, fmt.Errorf("%w: code %d", ErrUDPProtocol, code)
	}
}

// Logout ends the session if one is open.
func (u *udpClient) Logout(ctx context.Context) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.session == "" {
		return
	}
	if _, _, err := u.exchange(ctx, "LOGOUT s="+u.session); err != nil {
		u.logger.Debug().Err(err).Msg("UDP logout failed")
	}
	u.session = ""
	if u.conn != nil {
		u.conn.Close()
		u.conn = nil
	}
}

// ensureSession dials and authenticates when no live session exists.
// Callers hold mu.
func (u *udpClient) ensureSession(ctx context.Context) error {
	if u.session != "" && time.Since(u.lastUsed) < sessionIdle {
		return nil
	}
	u.session = ""

	if u.conn == nil {
		conn, err := net.Dial("udp", udpAddr)
		if err != nil {
			return fmt.Errorf("dial anidb: %w", err)
		}
		u.conn = conn
	}

	cmd := fmt.Sprintf("AUTH user=%s&pass=%s&protover=3&client=%s&clientver=%s&enc=UTF-8",
		strings.ToLower(u.username), u.password, strings.ToLower(u.clientName), u.clientVer)
	code, payload, err := u.exchange(ctx, cmd)
	if err != nil {
		return err
	}

	// 200 {session} LOGIN ACCEPTED / 201 {session} LOGIN ACCEPTED - NEW VERSION AVAILABLE
	if code == 200 || code == 201 {
		fields := strings.Fields(payload)
		if len(fields) == 0 {
			return fmt.Errorf("%w: missing session key", ErrUDPProtocol)
		}
		u.session = fields[0]
		u.logger.Debug().Msg("UDP session established")
		return nil
	}
	if code == 555 {
		return ErrUDPBanned
	}
	return fmt.Errorf("%w: code %d", ErrUDPAuth, code)
}

// exchange sends one command and reads one reply, honoring the packet
// spacing and the context deadline. Callers hold mu.
func (u *udpClient) exchange(ctx context.Context, cmd string) (int, string, error) {
	if wait := udpSpacing - time.Since(u.lastSend); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return 0, "", ctx.Err()
		}
	}
	u.lastSend = time.Now()
	u.lastUsed = time.Now()

	deadline := time.Now().Add(30 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := u.conn.SetDeadline(deadline); err != nil {
		return 0, "", err
	}

	if _, err := u.conn.Write([]byte(cmd)); err != nil {
		return 0, "", fmt.Errorf("UDP send: %w", err)
	}

	buf := make([]byte, 4096)
	n, err := u.conn.Read(buf)
	if err != nil {
		return 0, "", fmt.Errorf("UDP receive: %w", err)
	}

	reply := strings.TrimRight(string(buf[:n]), "\n")
	line, rest, _ := strings.Cut(reply, "\n")

	fields := strings.SplitN(line, " ", 2)
	code, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, "", fmt.Errorf("%w: unparseable reply %q", ErrUDPProtocol, line)
	}
	payload := ""
	if len(fields) == 2 {
		payload = fields[1]
	}
	if rest != "" {
		payload = rest
	}
	return code, payload, nil
}

// EpisodeRecord is the decoded 240 EPISODE reply.
type EpisodeRecord struct {
	EID           int
	AID           int
	EpisodeNumber string
	NameEnglish   string
	NameRomaji    string
	NameKanji     string
	Aired         string
}

// parseEpisodeRecord decodes the pipe-separated EPISODE data line:
// eid|aid|length|rating|votes|epno|eng|romaji|kanji|aired|type.
func parseEpisodeRecord(payload string) (*EpisodeRecord, error) {
	fields := strings.Split(payload, "|")
	if len(fields) < 10 {
		return nil, fmt.Errorf("%w: short EPISODE reply (%d fields)", ErrUDPProtocol, len(fields))
	}
	atoi := func(s string) int {
		n, _ := strconv.Atoi(s)
		return n
	}
	return &EpisodeRecord{
		EID:           atoi(fields[0]),
		AID:           atoi(fields[1]),
		EpisodeNumber: fields[5],
		NameEnglish:   fields[6],
		NameRomaji:    fields[7],
		NameKanji:     fields[8],
		Aired:         fields[9],
	}, nil
}

// FileRecord is the decoded 220 FILE reply.
type FileRecord struct {
	FileID        int
	AID           int
	EID           int
	GID           int
	EpisodeNumber string
	EpisodeName   string
	EpisodeRomaji string
	Year          string
	AnimeType     string
}

// parseFileRecord decodes the pipe-separated FILE data line. Field order
// follows the fmask/amask bits requested above: fid, aid, eid, gid,
// epno, ep name, ep romaji, year, type.
func parseFileRecord(payload string) (*FileRecord, error) {
	fields := strings.Split(payload, "|")
	if len(fields) < 9 {
		return nil, fmt.Errorf("%w: short FILE reply (%d fields)", ErrUDPProtocol, len(fields))
	}

	atoi := func(s string) int {
		n, _ := strconv.Atoi(s)
		return n
	}
	return &FileRecord{
		FileID:        atoi(fields[0]),
		AID:           atoi(fields[1]),
		EID:           atoi(fields[2]),
		GID:           atoi(fields[3]),
		EpisodeNumber: fields[4],
		EpisodeName:   fields[5],
		EpisodeRomaji: fields[6],
		Year:          fields[7],
		AnimeType:     fields[8],
	}, nil
}
