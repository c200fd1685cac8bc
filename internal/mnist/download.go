package mnist

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

// DefaultMirror hosts the original MNIST gzip files.
const DefaultMirror = "https://ossci-datasets.s3.amazonaws.com/mnist/"

const (
	TrainImages = "train-images-idx3-ubyte.gz"
	TrainLabels = "train-labels-idx1-ubyte.gz"
	TestImages  = "t10k-images-idx3-ubyte.gz"
	TestLabels  = "t10k-labels-idx1-ubyte.gz"
)

// Files lists the four dataset files in download order.
var Files = []string{TrainImages, TrainLabels, TestImages, TestLabels}

// Checksums holds the SHA-256 of the canonical gzip files.
var Checksums = map[string]string{
	TrainImages: "440fcabf73cc546fa21475e81ea370265605f56be210a4024d2ca8f203523609",
	TrainLabels: "3552534a0a558bbed6aed32b30c495cca23d567ec52cac8be1a0730e8010255c",
	TestImages:  "8d422c7b0a1c1c79245a5bcf07fe86e33eeafee792b84584aec276f5a2dbc4e6",
	TestLabels:  "f7ae60f92e00ec6debd23a6088c31dbd2371eca3ffa0defaefb259924204aec6",
}

// DefaultTimeout bounds one file transfer of the default client.
const DefaultTimeout = 2 * time.Minute

// ErrUnavailable reports that the dataset could not be retrieved.
var ErrUnavailable = errors.New("mnist: dataset unavailable")

// Downloader fetches the dataset files into a cache directory.
type Downloader struct {
	Mirror string
	Client *http.Client
	// Retries bounds the attempts made after the first failure of one file.
	Retries uint64
	// Checksums maps file names to expected SHA-256 hex digests. A nil
	// map skips verification.
	Checksums map[string]string
	// NewBackOff returns the retry schedule; nil uses exponential backoff.
	NewBackOff func() backoff.BackOff
	Logger     *log.Logger
}

// NewDownloader returns a downloader for the default mirror with
// checksum verification.
func NewDownloader() *Downloader {
	return &Downloader{
		Mirror:    DefaultMirror,
		Client:    &http.Client{Timeout: DefaultTimeout},
		Retries:   3,
		Checksums: Checksums,
	}
}

// Fetch makes sure every dataset file is present and intact in dir.
func (d *Downloader) Fetch(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(ErrUnavailable, "cache dir: %v", err)
	}
	for _, name := range Files {
		if err := d.fetchFile(dir, name); err != nil {
			return err
		}
	}
	return nil
}

func (d *Downloader) fetchFile(dir, name string) error {
	dest := filepath.Join(dir, name)
	want := d.Checksums[name]

	if _, err := os.Stat(dest); err == nil {
		if want == "" {
			d.logf("%s is already downloaded", name)
			return nil
		}
		got, err := fileSHA256(dest)
		if err == nil && got == want {
			d.logf("%s is already downloaded", name)
			return nil
		}
		d.logf("%s is corrupt, downloading again", name)
	}

	var b backoff.BackOff
	if d.NewBackOff != nil {
		b = d.NewBackOff()
	} else {
		b = backoff.NewExponentialBackOff()
	}
	b = backoff.WithMaxRetries(b, d.Retries)

	op := func() error {
		return d.download(d.Mirror+name, dest, want)
	}
	notify := func(err error, wait time.Duration) {
		d.logf("%s: %v, retrying in %s", name, err, wait)
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return errors.Wrapf(ErrUnavailable, "%s: %v", name, err)
	}
	return nil
}

// download writes url to dest through a temp file so a failed transfer
// never leaves a partial file behind.
func (d *Downloader) download(url, dest, want string) error {
	d.logf("Downloading %s", url)

	client := d.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("bad status: %s", resp.Status)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return backoff.Permanent(err)
		}
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return backoff.Permanent(err)
	}
	defer os.Remove(tmp.Name())

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if n == 0 {
		return errors.New("empty response body")
	}
	if got := hex.EncodeToString(h.Sum(nil)); want != "" && got != want {
		return backoff.Permanent(fmt.Errorf("checksum mismatch: got %s, want %s", got, want))
	}
	return os.Rename(tmp.Name(), dest)
}

func (d *Downloader) logf(format string, args ...interface{}) {
	if d.Logger != nil {
		d.Logger.Printf(format, args...)
	}
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
