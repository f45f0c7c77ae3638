package discover

import (
	"bytes"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/gobwas/glob"
	"github.com/sirupsen/logrus"

	"github.com/deploymenttheory/go-unixfs/pkg/app"
	"github.com/deploymenttheory/go-unixfs/pkg/services"
)

// matcher holds the compiled search criteria of a request
type matcher struct {
	req        *Request
	pattern    glob.Glob
	regex      *regexp.Regexp
	extensions map[string]struct{}
	minSize    int64
	maxSize    int64
	after      time.Time
	before     time.Time
	content    []byte
}

// Handle processes a discovery request against the filesystem of req.Target
func Handle(ctx *app.Context, svc services.FilesystemService, req *Request) (*Response, error) {
	startTime := time.Now()

	// 1. Validate request
	if err := req.Validate(); err != nil {
		return nil, err
	}
	m, err := newMatcher(req)
	if err != nil {
		return nil, err
	}

	ctx.Log("Starting file discovery in: %s", req.Target.String())
	logSearchCriteria(ctx, req)

	// 2. Walk the directory tree
	entries, err := svc.ListFiles(ctx, req.Target, services.ListOptions{
		Path:          req.Path,
		Recursive:     true,
		AllocatedOnly: !req.IncludeDeleted,
		DeletedOnly:   req.DeletedOnly,
	})
	if err != nil {
		return nil, err
	}

	// 3. Filter
	files := []FileResult{}
	for _, e := range entries {
		if e.Type == "d" {
			continue
		}
		result := fileResult(e)
		if !m.match(result) {
			continue
		}
		if len(m.content) > 0 && !m.contentMatches(ctx, svc, e) {
			continue
		}
		files = append(files, result)
	}

	response := &Response{
		Files:       files,
		TotalFound:  len(files),
		Filesystem:  filesystemInfo(ctx, svc, req.Target),
		SearchQuery: createSearchQuery(req),
	}

	// Truncate results if over limit
	if len(response.Files) > req.MaxResults {
		response.Files = response.Files[:req.MaxResults]
		response.Truncated = true
	}
	response.SearchTime = time.Since(startTime)

	ctx.Logger.WithFields(logrus.Fields{
		"found":    response.TotalFound,
		"duration": response.SearchTime,
	}).Debug("discovery completed")

	return response, nil
}

func newMatcher(req *Request) (*matcher, error) {
	m := &matcher{req: req}

	if req.NamePattern != "" {
		pattern := req.NamePattern
		if !req.CaseSensitive {
			pattern = strings.ToLower(pattern)
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, app.NewError(app.ErrCodeArg, "invalid name pattern", err)
		}
		m.pattern = g
	}
	if req.NameRegex != "" {
		expr := req.NameRegex
		if !req.CaseSensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, app.NewError(app.ErrCodeArg, "invalid regex pattern", err)
		}
		m.regex = re
	}
	if len(req.Extensions) > 0 {
		m.extensions = make(map[string]struct{}, len(req.Extensions))
		for _, ext := range req.Extensions {
			m.extensions[strings.ToLower(strings.TrimPrefix(ext, "."))] = struct{}{}
		}
	}

	// Validate has already checked the formats
	m.minSize, _ = ParseSize(req.MinSize)
	m.maxSize, _ = ParseSize(req.MaxSize)
	if req.ModifiedAfter != "" {
		m.after, _ = time.Parse(dateLayout, req.ModifiedAfter)
	}
	if req.ModifiedBefore != "" {
		m.before, _ = time.Parse(dateLayout, req.ModifiedBefore)
	}
	m.content = []byte(req.ContentSearch)
	return m, nil
}

// match applies every criterion except the content search
func (m *matcher) match(f FileResult) bool {
	name := f.Name
	if !m.req.CaseSensitive {
		name = strings.ToLower(name)
	}
	if m.pattern != nil && !m.pattern.Match(name) {
		return false
	}
	if m.regex != nil && !m.regex.MatchString(f.Name) {
		return false
	}
	if m.extensions != nil {
		if _, ok := m.extensions[strings.ToLower(f.Extension)]; !ok {
			return false
		}
	}
	if m.req.MinSize != "" && f.Size < m.minSize {
		return false
	}
	if m.req.MaxSize != "" && f.Size > m.maxSize {
		return false
	}
	if !m.after.IsZero() && f.Modified.Before(m.after) {
		return false
	}
	if !m.before.IsZero() && !f.Modified.Before(m.before) {
		return false
	}
	return true
}

// contentMatches reads the file and looks for the search bytes. Files that
// cannot be read do not match.
func (m *matcher) contentMatches(ctx *app.Context, svc services.FilesystemService, e services.FileEntry) bool {
	var buf bytes.Buffer
	if _, err := svc.ReadFile(ctx, m.req.Target, e.Inum, false, &buf); err != nil {
		ctx.Logger.WithError(err).WithField("inum", e.Inum).Debug("content search skipped unreadable file")
		return false
	}
	if m.req.CaseSensitive {
		return bytes.Contains(buf.Bytes(), m.content)
	}
	return bytes.Contains(bytes.ToLower(buf.Bytes()), bytes.ToLower(m.content))
}

func fileResult(e services.FileEntry) FileResult {
	return FileResult{
		Path:        e.Path,
		Name:        e.Name,
		Size:        int64(e.Size),
		Modified:    e.Modified,
		Type:        typeName(e.Type),
		Deleted:     e.Deleted,
		Inum:        e.Inum,
		Permissions: e.Mode,
		Extension:   strings.TrimPrefix(path.Ext(e.Name), "."),
	}
}

// typeName expands the listing type character
func typeName(c string) string {
	switch c {
	case "r":
		return "file"
	case "l":
		return "symlink"
	case "c":
		return "char device"
	case "b":
		return "block device"
	case "p":
		return "fifo"
	case "s":
		return "socket"
	default:
		return "other"
	}
}

func filesystemInfo(ctx *app.Context, svc services.FilesystemService, target app.ImageTarget) FilesystemInfo {
	info := FilesystemInfo{Image: target.String()}
	stat, err := svc.Stat(ctx, target)
	if err != nil {
		ctx.Logger.WithError(err).Debug("filesystem summary unavailable")
		return info
	}
	info.Type = stat.Type
	info.VolumeName = stat.VolumeName
	info.VolumeID = stat.VolumeID
	info.BlockSize = stat.BlockSize
	return info
}

// logSearchCriteria logs the search criteria for verbose output
func logSearchCriteria(ctx *app.Context, req *Request) {
	if !ctx.Verbose {
		return
	}

	fields := logrus.Fields{"image": req.Target.String()}
	if req.Path != "" {
		fields["path"] = req.Path
	}
	if req.NamePattern != "" {
		fields["pattern"] = req.NamePattern
	}
	if req.NameRegex != "" {
		fields["regex"] = req.NameRegex
	}
	if len(req.Extensions) > 0 {
		fields["extensions"] = strings.Join(req.Extensions, ",")
	}
	if req.ContentSearch != "" {
		fields["content"] = req.ContentSearch
	}
	if req.MinSize != "" || req.MaxSize != "" {
		fields["size"] = req.MinSize + "-" + req.MaxSize
	}
	if req.IncludeDeleted {
		fields["deleted"] = true
	}
	ctx.Logger.WithFields(fields).Debug("search criteria")
}

// createSearchQuery creates a SearchQuery from the request
func createSearchQuery(req *Request) SearchQuery {
	return SearchQuery{
		Path:           req.Path,
		NamePattern:    req.NamePattern,
		NameRegex:      req.NameRegex,
		Extensions:     req.Extensions,
		CaseSensitive:  req.CaseSensitive,
		MinSize:        req.MinSize,
		MaxSize:        req.MaxSize,
		ModifiedAfter:  req.ModifiedAfter,
		ModifiedBefore: req.ModifiedBefore,
		ContentSearch:  req.ContentSearch,
		IncludeDeleted: req.IncludeDeleted,
		DeletedOnly:    req.DeletedOnly,
		MaxResults:     req.MaxResults,
	}
}
