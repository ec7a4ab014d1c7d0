// Package kaggle downloads public datasets from Kaggle and installs the API
// credentials the official tooling expects.
package kaggle

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ironsheep/ultrasound-prep/internal/dataset"
)

// DefaultBaseURL is the Kaggle public API root.
const DefaultBaseURL = "https://www.kaggle.com/api/v1"

// CredentialsFile is the file name Kaggle tooling looks for.
const CredentialsFile = "kaggle.json"

// Credentials is the content of kaggle.json.
type Credentials struct {
	Username string `json:"username"`
	Key      string `json:"key"`
}

// ReadCredentials parses a kaggle.json file.
func ReadCredentials(path string) (Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to read credentials: %w", err)
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return Credentials{}, fmt.Errorf("failed to parse credentials %s: %w", path, err)
	}
	if creds.Username == "" || creds.Key == "" {
		return Credentials{}, fmt.Errorf("credentials %s missing username or key", path)
	}
	return creds, nil
}

// InstallCredentials copies src into kaggleDir/kaggle.json with mode 0600.
// An empty kaggleDir means ~/.kaggle. It returns the installed path.
func InstallCredentials(src, kaggleDir string) (string, error) {
	if kaggleDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to locate home directory: %w", err)
		}
		kaggleDir = filepath.Join(home, ".kaggle")
	}

	if err := os.MkdirAll(kaggleDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", kaggleDir, err)
	}

	dst := filepath.Join(kaggleDir, CredentialsFile)
	if err := dataset.CopyFile(src, dst); err != nil {
		return "", fmt.Errorf("failed to copy credentials: %w", err)
	}
	if err := os.Chmod(dst, 0600); err != nil {
		return "", fmt.Errorf("failed to set credential permissions: %w", err)
	}
	return dst, nil
}

// Client downloads dataset archives.
type Client struct {
	BaseURL     string
	HTTPClient  *http.Client
	Credentials Credentials
}

// NewClient returns a client for the public Kaggle API.
func NewClient(creds Credentials) *Client {
	return &Client{
		BaseURL:     DefaultBaseURL,
		HTTPClient:  http.DefaultClient,
		Credentials: creds,
	}
}

// Download fetches the dataset named by handle ("owner/name") and unpacks it
// under cacheDir/owner/name, returning that directory.
//
// A non-empty cache directory is reused without contacting the API. The
// archive is extracted into a temporary sibling and renamed into place, so an
// interrupted download never leaves a half-populated cache.
func (c *Client) Download(ctx context.Context, handle, cacheDir string) (string, error) {
	owner, name, err := splitHandle(handle)
	if err != nil {
		return "", err
	}

	dest := filepath.Join(cacheDir, owner, name)
	if entries, err := os.ReadDir(dest); err == nil && len(entries) > 0 {
		slog.Info("using cached dataset", "path", dest)
		return dest, nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	archive, err := os.CreateTemp(filepath.Dir(dest), name+"-*.zip")
	if err != nil {
		return "", fmt.Errorf("failed to create archive file: %w", err)
	}
	defer os.Remove(archive.Name())

	url := fmt.Sprintf("%s/datasets/download/%s/%s", strings.TrimRight(c.BaseURL, "/"), owner, name)
	slog.Info("downloading dataset", "handle", handle, "url", url)
	if err := c.fetch(ctx, url, archive); err != nil {
		archive.Close()
		return "", err
	}
	if err := archive.Close(); err != nil {
		return "", fmt.Errorf("failed to write archive: %w", err)
	}

	staging, err := os.MkdirTemp(filepath.Dir(dest), name+"-extract-*")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := Extract(archive.Name(), staging); err != nil {
		return "", err
	}

	os.RemoveAll(dest)
	if err := os.Rename(staging, dest); err != nil {
		return "", fmt.Errorf("failed to move dataset into cache: %w", err)
	}
	return dest, nil
}

func (c *Client) fetch(ctx context.Context, url string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if c.Credentials.Username != "" {
		req.SetBasicAuth(c.Credentials.Username, c.Credentials.Key)
	}

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("dataset request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("dataset download returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read dataset archive: %w", err)
	}
	slog.Debug("downloaded archive", "bytes", n)
	return nil
}

// Extract unpacks a zip archive into dir. Entries that would land outside dir
// are rejected.
func Extract(archivePath, dir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer r.Close()

	root, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", dir, err)
	}

	for _, f := range r.File {
		target := filepath.Join(root, filepath.FromSlash(f.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("archive entry %q escapes destination", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", target, err)
			}
			continue
		}

		if err := extractFile(f, target); err != nil {
			return fmt.Errorf("failed to extract %s: %w", f.Name, err)
		}
	}

	return nil
}

func extractFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// CopyResult reports what CopyIntoProject found in the downloaded dataset.
type CopyResult struct {
	DatasetDir string // destination of the dataset folder, empty if absent
	CSVFile    string // destination of the metadata CSV, empty if absent
}

// CopyIntoProject copies the dataset folder and metadata CSV from a downloaded
// dataset into dataDir. Either may be missing from the download; missing items
// are logged and left empty in the result.
func CopyIntoProject(downloaded, dataDir, sourceDir, sourceCSV string) (CopyResult, error) {
	var result CopyResult

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return result, fmt.Errorf("failed to create data directory: %w", err)
	}

	from := filepath.Join(downloaded, sourceDir)
	if info, err := os.Stat(from); err == nil && info.IsDir() {
		to := filepath.Join(dataDir, sourceDir)
		if _, err := dataset.CopyTreeFiltered(from, to, nil); err != nil {
			return result, err
		}
		result.DatasetDir = to
	} else {
		slog.Warn("dataset folder not found in download", "path", from)
	}

	csvFrom := filepath.Join(downloaded, sourceCSV)
	if _, err := os.Stat(csvFrom); err == nil {
		to := filepath.Join(dataDir, sourceCSV)
		if err := dataset.CopyFile(csvFrom, to); err != nil {
			return result, fmt.Errorf("failed to copy %s: %w", sourceCSV, err)
		}
		result.CSVFile = to
	} else {
		slog.Warn("metadata csv not found in download", "path", csvFrom)
	}

	return result, nil
}

func splitHandle(handle string) (owner, name string, err error) {
	parts := strings.Split(strings.Trim(handle, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid dataset handle %q: want owner/name", handle)
	}
	return parts[0], parts[1], nil
}
