// Package vault is the Wallet component: machine-bound encrypted key
// storage, backup rotation, and transaction signing. The private key never
// leaves this package except through Sign and RevealPrivateKey, which
// wallet setup and wallet export call.
package vault

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/host"

	"slopesniper/internal/cryptoutil"
)

var (
	ErrInvalidKeyFormat   = errors.New("vault: invalid key format, expected base58 64-byte secret or JSON array of 64 bytes")
	ErrNoWallet           = errors.New("vault: no wallet configured")
	ErrUndecryptable      = errors.New("vault: wallet file could not be decrypted")
	ErrBackupWriteFailed  = errors.New("vault: failed to write wallet backup, aborting save")
	ErrCorruptedMachineKey = errors.New("vault: machine key file is corrupted")

	maxBackups = 10
)

const (
	walletFileName      = "wallet.enc"
	machineKeyFileName  = ".machine_key"
	backupDirName       = "wallet_backups"
)

// Wallet exposes only public information; the private key is held in an
// unexported field, reachable only through Sign and RevealPrivateKey.
type Wallet struct {
	Address   string
	PublicKey ed25519.PublicKey

	priv solana.PrivateKey
}

// Status describes the outcome of Load.
type Status int

const (
	StatusOK Status = iota
	StatusNoWallet
	StatusUndecryptable
	StatusEnvMismatch
)

type machineKeyFile struct {
	Salt    string `json:"salt"`
	Version int    `json:"version"`
}

type walletFile struct {
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

type backupEntry struct {
	Timestamp time.Time
	Path      string
	AddrPath  string
}

// Vault manages the on-disk encrypted wallet rooted at dir.
type Vault struct {
	dir string

	mu     sync.RWMutex
	loaded *Wallet
}

// New returns a Vault rooted at dir (created if missing).
func New(dir string) (*Vault, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("vault: create dir: %w", err)
	}
	return &Vault{dir: dir}, nil
}

// Fingerprint derives a stable per-machine identifier from the hostname,
// GOOS, and the host's platform-reported machine ID. Best-effort: a
// gopsutil failure degrades to hostname+GOOS rather than erroring, since
// the fingerprint only needs to be stable, not cryptographically strong.
func Fingerprint() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown-host"
	}

	machineID := ""
	if info, err := host.Info(); err == nil {
		machineID = info.HostID
	} else {
		log.Warn().Err(err).Msg("vault: could not read host id, falling back to hostname fingerprint")
	}

	sum := sha256.Sum256([]byte(hostname + "|" + runtime.GOOS + "|" + machineID))
	return hex.EncodeToString(sum[:]), nil
}

func (v *Vault) machineKeyPath() string { return filepath.Join(v.dir, machineKeyFileName) }
func (v *Vault) walletPath() string     { return filepath.Join(v.dir, walletFileName) }
func (v *Vault) backupDir() string      { return filepath.Join(v.dir, backupDirName) }

// MachineKey exposes the vault's derived machine-bound key so sibling
// stores (configstore) can encrypt under the same fingerprint+salt
// without each maintaining its own salt file.
func (v *Vault) MachineKey() ([]byte, error) {
	return v.machineKey()
}

// machineKey loads or creates the salt file, then derives the AES key from
// the machine fingerprint.
func (v *Vault) machineKey() ([]byte, error) {
	fp, err := Fingerprint()
	if err != nil {
		return nil, err
	}

	path := v.machineKeyPath()
	data, err := os.ReadFile(path)
	if err == nil {
		var mk machineKeyFile
		if jsonErr := json.Unmarshal(data, &mk); jsonErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptedMachineKey, jsonErr)
		}
		salt, decErr := hex.DecodeString(mk.Salt)
		if decErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptedMachineKey, decErr)
		}
		return cryptoutil.DeriveKey([]byte(fp), salt), nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("vault: read machine key: %w", err)
	}

	salt, err := cryptoutil.NewSalt()
	if err != nil {
		return nil, err
	}
	mk := machineKeyFile{Salt: hex.EncodeToString(salt), Version: 1}
	out, err := json.MarshalIndent(mk, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, out, 0600); err != nil {
		return nil, fmt.Errorf("vault: write machine key: %w", err)
	}
	return cryptoutil.DeriveKey([]byte(fp), salt), nil
}

// Generate creates a brand new ed25519 keypair via solana-go.
func (v *Vault) Generate() (*Wallet, error) {
	wk, err := solana.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("vault: generate keypair: %w", err)
	}
	return v.fromPrivateKey(wk)
}

// Import accepts either a base58-encoded 64-byte secret or a JSON array of
// 64 bytes. Any other shape is rejected.
func Import(raw []byte) (*Wallet, error) {
	trimmed := strings.TrimSpace(string(raw))

	if strings.HasPrefix(trimmed, "[") {
		var arr []byte
		if err := json.Unmarshal([]byte(trimmed), &arr); err != nil {
			return nil, ErrInvalidKeyFormat
		}
		if len(arr) != ed25519.PrivateKeySize {
			return nil, ErrInvalidKeyFormat
		}
		return fromPrivateKeyBytes(arr)
	}

	decoded, err := base58.Decode(trimmed)
	if err != nil || len(decoded) != ed25519.PrivateKeySize {
		return nil, ErrInvalidKeyFormat
	}
	return fromPrivateKeyBytes(decoded)
}

func fromPrivateKeyBytes(b []byte) (*Wallet, error) {
	// solana.PrivateKey(b) is a slice-type conversion, not a copy: priv
	// would otherwise alias b's backing array, so a caller that zeroes
	// its own buffer after calling this (loadFile, Restore) would zero
	// the key this Wallet retains. Copy first so the two are independent.
	owned := append([]byte(nil), b...)
	priv := solana.PrivateKey(owned)
	pub := priv.PublicKey()
	return &Wallet{
		Address:   pub.String(),
		PublicKey: ed25519.PublicKey(pub[:]),
		priv:      priv,
	}, nil
}

func (v *Vault) fromPrivateKey(priv solana.PrivateKey) (*Wallet, error) {
	pub := priv.PublicKey()
	return &Wallet{
		Address:   pub.String(),
		PublicKey: ed25519.PublicKey(pub[:]),
		priv:      priv,
	}, nil
}

// Load reads the wallet, preferring the envOverride (e.g. SOLANA_PRIVATE_KEY)
// over the on-disk file, per §4.1's precedence rule.
func (v *Vault) Load(envOverride string) (*Wallet, Status, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var envWallet *Wallet
	if envOverride != "" {
		w, err := Import([]byte(envOverride))
		if err != nil {
			return nil, StatusUndecryptable, err
		}
		envWallet = w
	}

	fileWallet, fileErr := v.loadFile()

	switch {
	case envWallet != nil && fileErr == nil:
		if fileWallet.Address != envWallet.Address {
			log.Warn().
				Str("envAddress", envWallet.Address).
				Str("fileAddress", fileWallet.Address).
				Msg("vault: environment wallet differs from on-disk wallet")
			v.loaded = envWallet
			return envWallet, StatusEnvMismatch, nil
		}
		v.loaded = envWallet
		return envWallet, StatusOK, nil
	case envWallet != nil:
		v.loaded = envWallet
		return envWallet, StatusOK, nil
	case fileErr == nil:
		v.loaded = fileWallet
		return fileWallet, StatusOK, nil
	case errors.Is(fileErr, os.ErrNotExist):
		return nil, StatusNoWallet, ErrNoWallet
	default:
		return nil, StatusUndecryptable, fileErr
	}
}

func (v *Vault) loadFile() (*Wallet, error) {
	data, err := os.ReadFile(v.walletPath())
	if err != nil {
		return nil, err
	}
	var wf walletFile
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecryptable, err)
	}
	nonce, err := base64.StdEncoding.DecodeString(wf.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecryptable, err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(wf.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecryptable, err)
	}
	key, err := v.machineKey()
	if err != nil {
		return nil, err
	}
	plaintext, err := cryptoutil.Open(key, nonce, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecryptable, err)
	}
	defer cryptoutil.ZeroBytes(plaintext)
	return fromPrivateKeyBytes(plaintext)
}

// Save encrypts w and writes it to disk, rotating the previous file into
// wallet_backups/ first. If the backup copy fails, the save is aborted.
func (v *Vault) Save(w *Wallet) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.rotateBackup(); err != nil {
		return err
	}

	key, err := v.machineKey()
	if err != nil {
		return err
	}
	nonce, ciphertext, err := cryptoutil.Seal(key, w.priv)
	if err != nil {
		return fmt.Errorf("vault: encrypt wallet: %w", err)
	}
	wf := walletFile{
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}
	out, err := json.MarshalIndent(wf, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(v.walletPath(), out, 0600); err != nil {
		return fmt.Errorf("vault: write wallet file: %w", err)
	}
	v.loaded = w
	log.Info().Str("address", w.Address).Msg("vault: wallet saved")
	return nil
}

func (v *Vault) rotateBackup() error {
	current, err := os.ReadFile(v.walletPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrBackupWriteFailed, err)
	}

	if err := os.MkdirAll(v.backupDir(), 0700); err != nil {
		return fmt.Errorf("%w: %v", ErrBackupWriteFailed, err)
	}

	stamp := time.Now().UTC().Format("20060102_150405")
	backupPath := filepath.Join(v.backupDir(), walletFileName+"."+stamp)
	if err := os.WriteFile(backupPath, current, 0600); err != nil {
		return fmt.Errorf("%w: %v", ErrBackupWriteFailed, err)
	}

	if cur, err := v.loadFile(); err == nil {
		addrPath := backupPath + ".address"
		_ = os.WriteFile(addrPath, []byte(cur.Address), 0600)
	}

	return v.pruneBackups()
}

func (v *Vault) pruneBackups() error {
	entries, err := os.ReadDir(v.backupDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var backups []backupEntry
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".address") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		backups = append(backups, backupEntry{
			Timestamp: info.ModTime(),
			Path:      filepath.Join(v.backupDir(), e.Name()),
			AddrPath:  filepath.Join(v.backupDir(), e.Name()+".address"),
		})
	}

	sort.Slice(backups, func(i, j int) bool { return backups[i].Timestamp.After(backups[j].Timestamp) })

	for _, b := range backups[min(len(backups), maxBackups):] {
		_ = os.Remove(b.Path)
		_ = os.Remove(b.AddrPath)
	}
	return nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// BackupRef describes one retained backup.
type BackupRef struct {
	Timestamp string
	Address   string
}

// ListBackups returns retained backups, newest first.
func (v *Vault) ListBackups() ([]BackupRef, error) {
	entries, err := os.ReadDir(v.backupDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var refs []BackupRef
	for _, e := range entries {
		if e.IsDir() || strings.HasSuffix(e.Name(), ".address") {
			continue
		}
		stamp := strings.TrimPrefix(e.Name(), walletFileName+".")
		addr := ""
		if data, err := os.ReadFile(filepath.Join(v.backupDir(), e.Name()+".address")); err == nil {
			addr = string(data)
		}
		refs = append(refs, BackupRef{Timestamp: stamp, Address: addr})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Timestamp > refs[j].Timestamp })
	return refs, nil
}

// Restore decrypts the backup file stamped ts and installs it as the
// current wallet (after rotating the current file out, same as Save).
func (v *Vault) Restore(ts string) error {
	backupPath := filepath.Join(v.backupDir(), walletFileName+"."+ts)
	data, err := os.ReadFile(backupPath)
	if err != nil {
		return fmt.Errorf("vault: read backup %s: %w", ts, err)
	}

	var wf walletFile
	if err := json.Unmarshal(data, &wf); err != nil {
		return fmt.Errorf("%w: %v", ErrUndecryptable, err)
	}
	nonce, _ := base64.StdEncoding.DecodeString(wf.Nonce)
	ciphertext, _ := base64.StdEncoding.DecodeString(wf.Ciphertext)
	key, err := v.machineKey()
	if err != nil {
		return err
	}
	plaintext, err := cryptoutil.Open(key, nonce, ciphertext)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUndecryptable, err)
	}
	defer cryptoutil.ZeroBytes(plaintext)

	w, err := fromPrivateKeyBytes(plaintext)
	if err != nil {
		return err
	}
	return v.Save(w)
}

// IntegrityReport describes a detected env/file address mismatch.
type IntegrityReport struct {
	MismatchDetected bool
	EnvAddress       string
	FileAddress      string
	Recommendation   string
}

// IntegrityReport compares the currently-loaded wallet's source against the
// on-disk file, if any.
func (v *Vault) IntegrityReport(envOverride string) IntegrityReport {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if envOverride == "" || v.loaded == nil {
		return IntegrityReport{}
	}
	fileWallet, err := v.loadFile()
	if err != nil {
		return IntegrityReport{}
	}
	if fileWallet.Address == v.loaded.Address {
		return IntegrityReport{}
	}
	return IntegrityReport{
		MismatchDetected: true,
		EnvAddress:       v.loaded.Address,
		FileAddress:      fileWallet.Address,
		Recommendation:   "the environment private key does not match wallet.enc; trades sign with the environment key. Update one to match the other to avoid confusion.",
	}
}

// Sign decodes a base64-serialized unsigned transaction, signs it with the
// wallet's key, and returns the re-serialized signed transaction, base64.
//
// This replaces a byte-splicing approach with solana-go's real versioned
// transaction codec, so multi-account / partially-signed transactions from
// the aggregator serialize correctly.
func (w *Wallet) Sign(unsignedTxBase64 string) (string, error) {
	txBytes, err := base64.StdEncoding.DecodeString(unsignedTxBase64)
	if err != nil {
		return "", fmt.Errorf("vault: decode transaction: %w", err)
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(txBytes))
	if err != nil {
		return "", fmt.Errorf("vault: parse transaction: %w", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(w.priv.PublicKey()) {
			return &w.priv
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("vault: sign transaction: %w", err)
	}

	signed, err := tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("vault: marshal signed transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(signed), nil
}

// RevealPrivateKey returns the base58-encoded private key. Used by wallet
// setup right after Generate/Import and by wallet export — callers must
// not persist this value in plaintext.
func (w *Wallet) RevealPrivateKey() string {
	return w.priv.String()
}
