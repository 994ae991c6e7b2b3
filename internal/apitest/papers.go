package apitest

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/importdesk/importdesk/internal/model"
)

type paperStore struct {
	nextID int64
	papers []*model.Paper
}

func newPaperStore() *paperStore { return &paperStore{} }

func (s *paperStore) find(id int64) (int, *model.Paper) {
	for i, p := range s.papers {
		if p.ID == id {
			return i, p
		}
	}
	return -1, nil
}

func (s *paperStore) findQuestion(id int64) (*model.Paper, int) {
	for _, p := range s.papers {
		for i, q := range p.Questions {
			if q.ID != nil && *q.ID == id {
				return p, i
			}
		}
	}
	return nil, -1
}

func (s *paperStore) summaries() []model.Paper {
	out := make([]model.Paper, 0, len(s.papers))
	for _, p := range s.papers {
		cp := *p
		cp.Questions = nil
		cp.QuestionCount = len(p.Questions)
		out = append(out, cp)
	}
	return out
}

// Papers returns the saved papers of a bank with their questions.
func (b *Backend) Papers(bank model.QuestionBank) []model.Paper {
	b.mu.Lock()
	defer b.mu.Unlock()
	return clonePapers(b.banks[bank].papers)
}

// Docs returns the saved documents with their pages.
func (b *Backend) Docs() []model.Paper {
	b.mu.Lock()
	defer b.mu.Unlock()
	return clonePapers(b.docs.papers)
}

func clonePapers(in []*model.Paper) []model.Paper {
	out := make([]model.Paper, 0, len(in))
	for _, p := range in {
		cp := *p
		cp.Questions = append([]model.Question(nil), p.Questions...)
		out = append(out, cp)
	}
	return out
}

// save stores questions as a new paper. Callers hold b.mu.
func (b *Backend) save(s *paperStore, name, year string, questions []model.Question) *model.Paper {
	s.nextID++
	p := &model.Paper{
		ID:         s.nextID,
		PaperName:  name,
		Year:       model.Label(year),
		CreateTime: model.Label(strconv.FormatInt(time.Now().UnixMilli(), 10)),
	}
	for _, q := range questions {
		b.nextQID++
		id := b.nextQID
		q.ID = &id
		q.PaperID = &p.ID
		q.PaperName = name
		p.Questions = append(p.Questions, q)
	}
	p.QuestionCount = len(p.Questions)
	s.papers = append(s.papers, p)
	return p
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "errorMessage": "invalid id"})
		return 0, false
	}
	return id, true
}

func (b *Backend) bankRoutes(g *gin.RouterGroup, bank model.QuestionBank) {
	g.POST("/upload", func(c *gin.Context) {
		if _, err := c.FormFile("file"); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "errorMessage": "no file"})
			return
		}
		b.mu.Lock()
		qs := append([]model.Question(nil), b.Recognized...)
		b.mu.Unlock()
		c.JSON(http.StatusOK, gin.H{"success": true, "questions": qs})
	})

	g.POST("/save", func(c *gin.Context) {
		var req struct {
			PaperName string           `json:"paperName"`
			Year      string           `json:"year"`
			Questions []model.Question `json:"questions"`
		}
		if err := c.ShouldBindJSON(&req); err != nil || req.PaperName == "" || len(req.Questions) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "errorMessage": "missing paperName or questions"})
			return
		}
		b.mu.Lock()
		p := b.save(b.banks[bank], req.PaperName, req.Year, req.Questions)
		b.mu.Unlock()
		c.JSON(http.StatusOK, gin.H{"success": true, "data": p.ID})
	})

	g.GET("/papers", func(c *gin.Context) {
		b.mu.Lock()
		defer b.mu.Unlock()
		c.JSON(http.StatusOK, gin.H{"success": true, "data": b.banks[bank].summaries()})
	})

	g.GET("/papers/:id", func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		_, p := b.banks[bank].find(id)
		if p == nil {
			c.JSON(http.StatusOK, gin.H{"success": false, "errorMessage": "paper not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": p})
	})

	g.DELETE("/papers/:id", func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		s := b.banks[bank]
		i, p := s.find(id)
		if p == nil {
			c.JSON(http.StatusOK, gin.H{"success": false, "errorMessage": "delete failed"})
			return
		}
		s.papers = append(s.papers[:i], s.papers[i+1:]...)
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	g.PUT("/questions/:id", func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		var q model.Question
		if err := c.ShouldBindJSON(&q); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "errorMessage": err.Error()})
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		p, i := b.banks[bank].findQuestion(id)
		if p == nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "errorMessage": fmt.Sprintf("question not found: %d", id)})
			return
		}
		q.ID = p.Questions[i].ID
		q.PaperID = p.Questions[i].PaperID
		p.Questions[i] = q
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	g.DELETE("/questions/:id", func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()
		p, i := b.banks[bank].findQuestion(id)
		if p == nil {
			c.JSON(http.StatusOK, gin.H{"success": false, "errorMessage": "delete failed"})
			return
		}
		p.Questions = append(p.Questions[:i], p.Questions[i+1:]...)
		p.QuestionCount = len(p.Questions)
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
}

// searchBank matches paper names first and falls back to question content,
// grouping matched questions under their papers.
func (b *Backend) searchBank(bank model.QuestionBank) gin.HandlerFunc {
	return func(c *gin.Context) {
		query := strings.TrimSpace(c.Query("query"))
		if query == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "errorMessage": "empty query"})
			return
		}
		b.mu.Lock()
		defer b.mu.Unlock()

		var byName []model.Paper
		for _, p := range b.banks[bank].papers {
			if strings.Contains(p.PaperName, query) {
				cp := *p
				byName = append(byName, cp)
			}
		}
		if len(byName) > 0 {
			c.JSON(http.StatusOK, gin.H{"success": true, "data": byName, "searchType": model.SearchByPaper, "matchCount": len(byName)})
			return
		}

		var byQuestion []model.Paper
		matches := 0
		for _, p := range b.banks[bank].papers {
			var hits []model.Question
			for _, q := range p.Questions {
				if strings.Contains(q.Content, query) {
					hits = append(hits, q)
				}
			}
			if len(hits) > 0 {
				cp := *p
				cp.Questions = hits
				byQuestion = append(byQuestion, cp)
				matches += len(hits)
			}
		}
		if matches == 0 {
			c.JSON(http.StatusOK, gin.H{"success": true, "data": []model.Paper{}, "message": "no match"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "data": byQuestion, "searchType": model.SearchByQuestion, "matchCount": matches})
	}
}

func (b *Backend) docUpload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "no file"})
		return
	}
	b.mu.Lock()
	pages, ok := b.DocPages[fh.Filename]
	b.mu.Unlock()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "unsupported document: " + fh.Filename})
		return
	}
	name := strings.TrimSuffix(fh.Filename, filepath.Ext(fh.Filename))
	c.JSON(http.StatusOK, gin.H{"success": true, "paperName": name, "questionCount": len(pages), "questions": pages})
}

func (b *Backend) docSave(c *gin.Context) {
	var req struct {
		PaperName string           `json:"paperName"`
		Questions []model.Question `json:"questions"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.PaperName == "" || req.Questions == nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "missing paperName or questions"})
		return
	}
	b.mu.Lock()
	p := b.save(b.docs, req.PaperName, "", req.Questions)
	b.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "saved", "paperId": p.ID})
}

func (b *Backend) docPapers(c *gin.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"success": true, "papers": b.docs.summaries()})
}

func (b *Backend) docPaper(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	_, p := b.docs.find(id)
	if p == nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "document not found"})
		return
	}
	summary := *p
	summary.Questions = nil
	c.JSON(http.StatusOK, gin.H{"success": true, "paper": summary, "questions": p.Questions})
}

func (b *Backend) docUpdate(c *gin.Context) {
	var q model.Question
	if err := c.ShouldBindJSON(&q); err != nil || q.ID == nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "missing page id"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p, i := b.docs.findQuestion(*q.ID)
	if p == nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "page not found"})
		return
	}
	q.PaperID = p.Questions[i].PaperID
	p.Questions[i] = q
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "updated"})
}

func (b *Backend) docDeleteQuestion(c *gin.Context) {
	var req struct {
		ID int64 `json:"id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "missing page id"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p, i := b.docs.findQuestion(req.ID)
	if p == nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "page not found"})
		return
	}
	p.Questions = append(p.Questions[:i], p.Questions[i+1:]...)
	p.QuestionCount = len(p.Questions)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "deleted"})
}

func (b *Backend) docDeletePaper(c *gin.Context) {
	var req struct {
		ID int64 `json:"id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "missing document id"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	i, p := b.docs.find(req.ID)
	if p == nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "document not found"})
		return
	}
	b.docs.papers = append(b.docs.papers[:i], b.docs.papers[i+1:]...)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "deleted"})
}

func (b *Backend) docSearch(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "empty query"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	results := []model.Paper{}
	for _, p := range b.docs.summaries() {
		_, full := b.docs.find(p.ID)
		hit := strings.Contains(p.PaperName, query)
		for _, q := range full.Questions {
			if strings.Contains(q.Content, query) {
				hit = true
			}
		}
		if hit {
			results = append(results, p)
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "results": results, "count": len(results)})
}
