package internal

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

var (
	errMalformedRange     = errors.New("malformed range")
	errUnsatisfiableRange = errors.New("range not satisfiable")
)

// parseByteRange parses a "bytes=start-end" header against the given size.
// Suffix ranges ("bytes=-N") and open ends ("bytes=N-") are honored.
func parseByteRange(header string, size int64) (start, end int64, err error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, 0, errMalformedRange
	}
	// Only the first range of a multi-range request is served.
	if i := strings.IndexByte(spec, ','); i >= 0 {
		spec = spec[:i]
	}
	startStr, endStr, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok {
		return 0, 0, errMalformedRange
	}
	if startStr == "" {
		// Suffix range: last N bytes.
		n, perr := strconv.ParseInt(endStr, 10, 64)
		if perr != nil || n <= 0 {
			return 0, 0, errMalformedRange
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, nil
	}
	start, perr := strconv.ParseInt(startStr, 10, 64)
	if perr != nil || start < 0 {
		return 0, 0, errMalformedRange
	}
	if endStr == "" {
		end = size - 1
	} else {
		end, perr = strconv.ParseInt(endStr, 10, 64)
		if perr != nil {
			return 0, 0, errMalformedRange
		}
	}
	if start > end {
		return 0, 0, errMalformedRange
	}
	if start >= size {
		return 0, 0, errUnsatisfiableRange
	}
	if end >= size {
		end = size - 1
	}
	return start, end, nil
}

// ServeArtifact serves a cached preview file with byte-range support.
func ServeArtifact(c *gin.Context, art *ArtifactFile) {
	f, err := os.Open(art.Path)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": KindNotFound.String(), "videoId": art.VideoID})
		return
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	size := fi.Size()

	c.Header("Accept-Ranges", "bytes")
	c.Header("Content-Type", "video/mp4")
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", sanitizeFilename(art.VideoID)+".mp4"))

	rangeHeader := c.GetHeader("Range")
	if rangeHeader == "" {
		c.Header("Content-Length", strconv.FormatInt(size, 10))
		c.Status(http.StatusOK)
		if c.Request.Method == http.MethodHead {
			return
		}
		io.Copy(c.Writer, f)
		return
	}

	start, end, err := parseByteRange(rangeHeader, size)
	if err != nil {
		c.Header("Content-Range", fmt.Sprintf("bytes */%d", size))
		c.Status(http.StatusRequestedRangeNotSatisfiable)
		return
	}
	length := end - start + 1
	c.Header("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	c.Header("Content-Length", strconv.FormatInt(length, 10))
	c.Status(http.StatusPartialContent)
	if c.Request.Method == http.MethodHead {
		return
	}
	if _, err := f.Seek(start, io.SeekStart); err != nil {
		return
	}
	io.CopyN(c.Writer, f, length)
}

// StreamLive pipes a subprocess stdout to the response as it is produced. The
// first chunk is read before any header is committed, so a producer that dies
// without emitting a byte surfaces as an error status rather than an empty
// success body. The handle is killed the moment the client stops consuming, so
// no process outlives its sole reader.
func StreamLive(c *gin.Context, out io.ReadCloser, h ProcHandle, filename string) error {
	buf := make([]byte, 32*1024)
	var n int
	var readErr error
	for n == 0 && readErr == nil {
		n, readErr = out.Read(buf)
	}
	if n == 0 {
		out.Close()
		err := h.Wait()
		if err == nil {
			detail := h.StderrTail()
			if detail == "" {
				detail = "producer exited without output"
			}
			err = NewError(KindEmptyOutput, detail)
		} else {
			err = refineProcessError(err, h.StderrTail())
		}
		kind := KindOf(err)
		c.JSON(kind.HTTPStatus(), gin.H{"error": kind.String(), "details": ErrDetail(err)})
		return err
	}

	c.Header("Content-Type", "video/mp4")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", sanitizeFilename(filename)))
	c.Status(http.StatusOK)

	if _, werr := c.Writer.Write(buf[:n]); werr != nil {
		h.Kill()
		h.Wait()
		out.Close()
		return nil
	}
	if readErr == nil {
		if _, copyErr := io.Copy(c.Writer, out); copyErr != nil {
			// Client went away: tear down the producer immediately.
			h.Kill()
			h.Wait()
			out.Close()
			return nil
		}
	}
	out.Close()
	return h.Wait()
}
