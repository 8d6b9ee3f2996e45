package record

import (
	"crypto/subtle"
	"fmt"
	"sync/atomic"

	"github.com/wtc-scada/pnioctl/wire"
)

const userSyncVersion uint8 = 1

// MaxUsers bounds a full-sync table.
const MaxUsers = 16

const usernameLen = 32
const passwordHashLen = 64

// userRecordLen is username[32] + password_hash[64] + role(1) + flags(1) +
// reserved[2] = 100 bytes.
const userRecordLen = 100

// userSyncBodyHeaderLen is Count(1) + Reserved(3) preceding the records.
const userSyncBodyHeaderLen = 4

// djb2Salt seeds every password hash computed for the legacy RTU credential
// format.
const djb2Salt = "NaCl4Life"

// Role enumerates the operator privilege levels a synced user carries.
type Role uint8

const (
	RoleOperator Role = iota
	RoleSupervisor
	RoleAdmin
)

// UserRecord is one synced operator credential.
type UserRecord struct {
	Username     string
	PasswordHash string // "DJB2:%08X:%08X", see HashPassword
	Role         Role
	Flags        uint8
}

func djb2(data []byte) uint32 {
	h := uint32(5381)
	for _, c := range data {
		h = h*33 + uint32(c)
	}
	return h
}

// HashPassword computes the legacy password hash used by synced credentials:
// "DJB2:%08X:%08X" where the first word is the DJB2 of the salt alone and
// the second is the DJB2 of salt-concatenated-with-password. The
// first word is therefore identical across every credential; it is carried
// on the wire only because the format is fixed, not because it adds
// anything to the comparison.
func HashPassword(password string) string {
	h1 := djb2([]byte(djb2Salt))
	h2 := djb2([]byte(djb2Salt + password))
	return fmt.Sprintf("DJB2:%08X:%08X", h1, h2)
}

// VerifyPassword reports whether password matches hash, comparing in
// constant time to avoid leaking a timing side-channel on operator login.
func VerifyPassword(password, hash string) bool {
	computed := HashPassword(password)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// MarshalUserSync encodes up to MaxUsers records into a 0xF840 write payload
//. More than MaxUsers records is a programming error, not a wire
// condition, since the caller controls the table being synced.
func MarshalUserSync(users []UserRecord) []byte {
	if len(users) > MaxUsers {
		users = users[:MaxUsers]
	}
	body := make([]byte, userSyncBodyHeaderLen+len(users)*userRecordLen)
	body[0] = byte(len(users))
	for i, u := range users {
		off := userSyncBodyHeaderLen + i*userRecordLen
		rec := body[off : off+userRecordLen]
		name := []byte(u.Username)
		if len(name) > usernameLen {
			name = name[:usernameLen]
		}
		copy(rec[0:usernameLen], name)
		hash := []byte(u.PasswordHash)
		if len(hash) > passwordHashLen {
			hash = hash[:passwordHashLen]
		}
		copy(rec[usernameLen:usernameLen+passwordHashLen], hash)
		rec[usernameLen+passwordHashLen] = byte(u.Role)
		rec[usernameLen+passwordHashLen+1] = u.Flags
	}
	return buildWithCRC(userSyncVersion, 0, body)
}

// ParseUserSync decodes and CRC/version-validates a user-sync frame.
// A rejected frame (ChecksumError or VersionMismatch) must leave any
// previously synced table untouched; callers enforce that by only calling
// Store.Replace after ParseUserSync succeeds.
func ParseUserSync(b []byte) ([]UserRecord, error) {
	h, body, err := parseHeader(b)
	if err != nil {
		return nil, err
	}
	if len(body) < userSyncBodyHeaderLen {
		return nil, wire.TruncatedFrame
	}
	count := int(body[0])
	if count > MaxUsers {
		return nil, wire.TruncatedFrame
	}
	end := userSyncBodyHeaderLen + count*userRecordLen
	if len(body) < end {
		return nil, wire.TruncatedFrame
	}
	body = body[:end]
	if err := validateBody(h, body, userSyncVersion); err != nil {
		return nil, err
	}

	users := make([]UserRecord, count)
	for i := range users {
		off := userSyncBodyHeaderLen + i*userRecordLen
		rec := body[off : off+userRecordLen]
		name := rec[0:usernameLen]
		nameEnd := 0
		for nameEnd < len(name) && name[nameEnd] != 0 {
			nameEnd++
		}
		hash := rec[usernameLen : usernameLen+passwordHashLen]
		hashEnd := 0
		for hashEnd < len(hash) && hash[hashEnd] != 0 {
			hashEnd++
		}
		users[i] = UserRecord{
			Username:     string(name[:nameEnd]),
			PasswordHash: string(hash[:hashEnd]),
			Role:         Role(rec[usernameLen+passwordHashLen]),
			Flags:        rec[usernameLen+passwordHashLen+1],
		}
	}
	return users, nil
}

// Store holds the currently synced user table, swapped atomically in whole
// on each successful sync so a concurrent reader never observes a partial
// table.
type Store struct {
	v atomic.Value // []UserRecord
}

// Replace atomically installs users as the current table.
func (s *Store) Replace(users []UserRecord) {
	cp := make([]UserRecord, len(users))
	copy(cp, users)
	s.v.Store(cp)
}

// Users returns the currently synced table. A nil return means no sync has
// completed yet.
func (s *Store) Users() []UserRecord {
	v, _ := s.v.Load().([]UserRecord)
	return v
}

// Find returns the record for username, if synced.
func (s *Store) Find(username string) (UserRecord, bool) {
	for _, u := range s.Users() {
		if u.Username == username {
			return u, true
		}
	}
	return UserRecord{}, false
}
