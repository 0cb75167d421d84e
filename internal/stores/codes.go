package stores

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/MrEthical07/goCred/ttlstore"
	"github.com/redis/go-redis/v9"
)

const (
	codeRecordVersionV1 = 1
	verifiedMarkValue   = "verified"
)

var (
	ErrCodeNotFound    = errors.New("code record not found")
	ErrCodeUnavailable = errors.New("code store unavailable")
	ErrCodeCorrupt     = errors.New("code record corrupt")
)

// ConsumeStatus is the outcome of [CodeStore.Consume]. The values are shared
// with consumeCodeLua.
type ConsumeStatus int

const (
	ConsumeMatched ConsumeStatus = iota + 1
	ConsumeNotFound
	ConsumeExpired
	ConsumeMismatch
	ConsumeExhausted
	consumeCorrupt
)

// ConsumeResult carries the attempts spent on the record, this one included.
type ConsumeResult struct {
	Status   ConsumeStatus
	Attempts int
}

// consumeCodeLua checks ARGV[1] against the code record at KEYS[1].
// Layout: version(1) attempts(2) issuedAt(8) expiresAt(8) idLen(2) id
// codeLen(1) code, integers big-endian.
// ARGV[1] = code
// ARGV[2] = max attempts
// ARGV[3] = now, unix millis
// Returns {status, attempts} and the raw record on a match.
var consumeCodeLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return {2, 0}
end

local size = string.len(data)
if size < 22 or string.byte(data, 1) ~= 1 then
  redis.call('DEL', KEYS[1])
  return {6, 0}
end
local codeLenPos = 22 + string.byte(data, 20) * 256 + string.byte(data, 21)
if size < codeLenPos or size ~= codeLenPos + string.byte(data, codeLenPos) then
  redis.call('DEL', KEYS[1])
  return {6, 0}
end

local attempts = string.byte(data, 2) * 256 + string.byte(data, 3)
local expiresAt = 0
for i = 12, 19 do
  expiresAt = expiresAt * 256 + string.byte(data, i)
end
if expiresAt < tonumber(ARGV[3]) then
  redis.call('DEL', KEYS[1])
  return {3, attempts}
end

if string.sub(data, codeLenPos + 1) == ARGV[1] then
  redis.call('DEL', KEYS[1])
  return {1, attempts, data}
end

attempts = attempts + 1
if attempts >= tonumber(ARGV[2]) or attempts > 65535 then
  redis.call('DEL', KEYS[1])
  return {5, attempts}
end

local ttl = redis.call('PTTL', KEYS[1])
if ttl <= 0 then
  redis.call('DEL', KEYS[1])
  return {3, attempts}
end
local updated = string.sub(data, 1, 1) .. string.char(math.floor(attempts / 256), attempts % 256) .. string.sub(data, 4)
redis.call('SET', KEYS[1], updated, 'PX', ttl)
return {4, attempts}
`)

// CodeRecord is one outstanding verification code.
type CodeRecord struct {
	Identifier string
	Code       string
	IssuedAt   time.Time
	ExpiresAt  time.Time
	Attempts   uint16
}

// CodeStore persists [CodeRecord] values and verified marks for one channel.
type CodeStore struct {
	store  ttlstore.Store
	prefix string
}

func NewCodeStore(store ttlstore.Store, prefix string) *CodeStore {
	if prefix == "" {
		prefix = "otp"
	}
	return &CodeStore{
		store:  store,
		prefix: prefix,
	}
}

func (s *CodeStore) codeKey(identifier string) string {
	return s.prefix + ":code:" + identifier
}

func (s *CodeStore) verifiedKey(identifier string) string {
	return s.prefix + ":verified:" + identifier
}

// Save writes record, replacing any outstanding code for the identifier.
func (s *CodeStore) Save(ctx context.Context, record *CodeRecord, ttl time.Duration) error {
	encoded, err := encodeCodeRecord(record)
	if err != nil {
		return err
	}
	if err := s.store.SetWithTTL(ctx, s.codeKey(record.Identifier), encoded, ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrCodeUnavailable, err)
	}
	return nil
}

// Consume checks code against the outstanding record for identifier and
// applies the outcome in one atomic step: the record is deleted on a match,
// on expiry and on the attempt that reaches maxAttempts, and any other
// mismatch bumps its attempts counter while keeping its remaining lifetime.
// An unreadable record is deleted and reported as [ErrCodeCorrupt].
func (s *CodeStore) Consume(ctx context.Context, identifier, code string, maxAttempts int, now time.Time) (ConsumeResult, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	key := s.codeKey(identifier)

	switch store := s.store.(type) {
	case ttlstore.ScriptRunner:
		return consumeScripted(ctx, store.Scripter(), key, code, maxAttempts, now)
	case ttlstore.Updater:
		return consumeLocked(ctx, store, key, code, maxAttempts, now)
	default:
		return ConsumeResult{}, fmt.Errorf("%w: %T cannot update codes atomically", ErrCodeUnavailable, s.store)
	}
}

func consumeScripted(ctx context.Context, scripter redis.Scripter, key, code string, maxAttempts int, now time.Time) (ConsumeResult, error) {
	res, err := consumeCodeLua.Run(ctx, scripter, []string{key}, code, maxAttempts, now.UnixMilli()).Slice()
	if err != nil {
		return ConsumeResult{}, fmt.Errorf("%w: %v", ErrCodeUnavailable, err)
	}
	if len(res) < 2 {
		return ConsumeResult{}, fmt.Errorf("%w: unexpected consume reply %v", ErrCodeUnavailable, res)
	}
	status, _ := res[0].(int64)
	attempts, _ := res[1].(int64)
	result := ConsumeResult{Status: ConsumeStatus(status), Attempts: int(attempts)}

	switch result.Status {
	case consumeCorrupt:
		return ConsumeResult{}, ErrCodeCorrupt
	case ConsumeMatched:
		if len(res) < 3 {
			return ConsumeResult{}, fmt.Errorf("%w: matched without record", ErrCodeUnavailable)
		}
		data, _ := res[2].(string)
		record, err := decodeCodeRecord([]byte(data))
		if err != nil {
			return ConsumeResult{}, fmt.Errorf("%w: %v", ErrCodeCorrupt, err)
		}
		if subtle.ConstantTimeCompare([]byte(record.Code), []byte(code)) != 1 {
			return ConsumeResult{}, fmt.Errorf("%w: matched record carries another code", ErrCodeCorrupt)
		}
	case ConsumeNotFound, ConsumeExpired, ConsumeMismatch, ConsumeExhausted:
	default:
		return ConsumeResult{}, fmt.Errorf("%w: unknown consume status %d", ErrCodeUnavailable, status)
	}
	return result, nil
}

func consumeLocked(ctx context.Context, store ttlstore.Updater, key, code string, maxAttempts int, now time.Time) (ConsumeResult, error) {
	var (
		result  ConsumeResult
		corrupt error
	)
	err := store.Update(ctx, key, func(value []byte) []byte {
		if value == nil {
			result.Status = ConsumeNotFound
			return nil
		}
		record, err := decodeCodeRecord(value)
		if err != nil {
			corrupt = fmt.Errorf("%w: %v", ErrCodeCorrupt, err)
			return nil
		}

		result.Attempts = int(record.Attempts)
		if record.ExpiresAt.UnixMilli() < now.UnixMilli() {
			result.Status = ConsumeExpired
			return nil
		}
		if subtle.ConstantTimeCompare([]byte(record.Code), []byte(code)) == 1 {
			result.Status = ConsumeMatched
			return nil
		}

		result.Attempts++
		if result.Attempts >= maxAttempts || result.Attempts > 0xFFFF {
			result.Status = ConsumeExhausted
			return nil
		}
		result.Status = ConsumeMismatch
		record.Attempts = uint16(result.Attempts)
		encoded, err := encodeCodeRecord(record)
		if err != nil {
			corrupt = fmt.Errorf("%w: %v", ErrCodeCorrupt, err)
			return nil
		}
		return encoded
	})
	if err != nil {
		return ConsumeResult{}, fmt.Errorf("%w: %v", ErrCodeUnavailable, err)
	}
	if corrupt != nil {
		return ConsumeResult{}, corrupt
	}
	return result, nil
}

// MarkVerified records a successful verification for ttl.
func (s *CodeStore) MarkVerified(ctx context.Context, identifier string, ttl time.Duration) error {
	if err := s.store.SetWithTTL(ctx, s.verifiedKey(identifier), []byte(verifiedMarkValue), ttl); err != nil {
		return fmt.Errorf("%w: %v", ErrCodeUnavailable, err)
	}
	return nil
}

func (s *CodeStore) IsVerified(ctx context.Context, identifier string) (bool, error) {
	ok, err := s.store.Exists(ctx, s.verifiedKey(identifier))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCodeUnavailable, err)
	}
	return ok, nil
}

// TakeVerified clears the verified mark and reports whether it was set.
// Concurrent callers see true at most once per mark.
func (s *CodeStore) TakeVerified(ctx context.Context, identifier string) (bool, error) {
	ok, err := s.store.Take(ctx, s.verifiedKey(identifier))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCodeUnavailable, err)
	}
	return ok, nil
}

func encodeCodeRecord(record *CodeRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(codeRecordVersionV1)

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.IssuedAt.UnixMilli()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt.UnixMilli()); err != nil {
		return nil, err
	}

	if len(record.Identifier) > 65535 {
		return nil, errors.New("code record identifier too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Identifier))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Identifier)

	if len(record.Code) > 255 {
		return nil, errors.New("code record code too long")
	}
	buf.WriteByte(byte(len(record.Code)))
	buf.WriteString(record.Code)

	return buf.Bytes(), nil
}

func decodeCodeRecord(data []byte) (*CodeRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != codeRecordVersionV1 {
		return nil, errors.New("invalid code record version")
	}

	record := &CodeRecord{}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}

	var issuedAt, expiresAt int64
	if err := binary.Read(reader, binary.BigEndian, &issuedAt); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &expiresAt); err != nil {
		return nil, err
	}
	record.IssuedAt = time.UnixMilli(issuedAt)
	record.ExpiresAt = time.UnixMilli(expiresAt)

	var identifierLen uint16
	if err := binary.Read(reader, binary.BigEndian, &identifierLen); err != nil {
		return nil, err
	}
	identifier := make([]byte, identifierLen)
	if _, err := io.ReadFull(reader, identifier); err != nil {
		return nil, err
	}
	record.Identifier = string(identifier)

	codeLen, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	code := make([]byte, codeLen)
	if _, err := io.ReadFull(reader, code); err != nil {
		return nil, err
	}
	record.Code = string(code)

	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in code record")
	}

	return record, nil
}
