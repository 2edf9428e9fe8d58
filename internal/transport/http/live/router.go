package livehttp

import (
	"bufio"
	"errors"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const maxLogLineSize = 1 << 20

// Router 暴露 /api/live 下的查询与运维接口。
type Router struct {
	Items     ItemSource
	Positions PositionRegistry
	Records   RecordReader
	Schemes   SchemeSource
	logPaths  map[string]string
	logNames  []string
}

func NewRouter(items ItemSource, positions PositionRegistry, recs RecordReader, schemes SchemeSource, logPaths map[string]string) *Router {
	names := make([]string, 0, len(logPaths))
	for name, path := range logPaths {
		if strings.TrimSpace(path) == "" || strings.TrimSpace(name) == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return &Router{Items: items, Positions: positions, Records: recs, Schemes: schemes, logPaths: logPaths, logNames: names}
}

// Register 将 /api/live 路由挂载到给定分组下。
func (r *Router) Register(group *gin.RouterGroup) {
	if group == nil {
		return
	}
	group.GET("/items", r.handleItems)
	group.GET("/positions", r.handlePositions)
	group.GET("/positions/:id", r.handlePosition)
	group.DELETE("/positions/:id", r.handleRemovePosition)
	group.GET("/schemes", r.handleSchemes)
	group.GET("/logs", r.handleLogs)
	if r.Records != nil {
		group.GET("/records", r.handleRecords)
		group.GET("/records/:id", r.handleRecord)
		group.GET("/positions/:id/exits", r.handleExits)
	}
}

func (r *Router) handleItems(c *gin.Context) {
	if r.Items == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "ingest loop unavailable"})
		return
	}
	items := r.Items.Table().Snapshot()
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		filtered := items[:0]
		for _, it := range items {
			if strings.EqualFold(it.Status.String(), status) {
				filtered = append(filtered, it)
			}
		}
		items = filtered
	}
	c.JSON(http.StatusOK, gin.H{
		"items":       items,
		"count":       len(items),
		"queue_depth": r.Items.QueueLen(),
	})
}

func (r *Router) handlePositions(c *gin.Context) {
	if r.Positions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "risk manager unavailable"})
		return
	}
	mons := r.Positions.Monitors()
	if parseBoolDefaultFalse(c.Query("active")) {
		active := mons[:0]
		for _, m := range mons {
			if m.Active {
				active = append(active, m)
			}
		}
		mons = active
	}
	c.JSON(http.StatusOK, gin.H{"positions": mons, "count": len(mons)})
}

func (r *Router) handlePosition(c *gin.Context) {
	if r.Positions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "risk manager unavailable"})
		return
	}
	snap, ok := r.Positions.Lookup(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "position not found"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// handleRemovePosition 只从登记表移除，已运行的监控循环不受影响。
func (r *Router) handleRemovePosition(c *gin.Context) {
	if r.Positions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "risk manager unavailable"})
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if !r.Positions.RemovePosition(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "position not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": id})
}

func (r *Router) handleSchemes(c *gin.Context) {
	if r.Schemes == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scheme registry unavailable"})
		return
	}
	snap := r.Schemes.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"version":   snap.Version,
		"loaded_at": snap.LoadedAt,
		"schemes":   snap.Schemes,
	})
}

func (r *Router) handleRecords(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	recs, err := r.Records.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": recs, "count": len(recs)})
}

func (r *Router) handleRecord(c *gin.Context) {
	rec, err := r.Records.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (r *Router) handleExits(c *gin.Context) {
	exits, err := r.Records.Exits(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"exits": exits, "count": len(exits)})
}

func (r *Router) handleLogs(c *gin.Context) {
	if len(r.logNames) == 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "未配置日志文件"})
		return
	}
	name := strings.TrimSpace(c.DefaultQuery("name", ""))
	path := ""
	if name != "" {
		path = strings.TrimSpace(r.logPaths[name])
	}
	if path == "" {
		name = r.logNames[0]
		path = r.logPaths[name]
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "200"))
	if limit <= 0 {
		limit = 200
	}
	lines, err := readLastLines(path, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "path": path})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"name":      name,
		"lines":     lines,
		"available": r.logNames,
	})
}

func readLastLines(path string, limit int) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLogLineSize)
	lines := make([]string, 0, limit)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if len(lines) > limit {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func parseBoolDefaultFalse(val string) bool {
	s := strings.TrimSpace(strings.ToLower(val))
	return s == "1" || s == "true" || s == "yes"
}
