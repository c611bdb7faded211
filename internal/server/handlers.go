package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nao1215/postboard/internal/auth"
	"github.com/nao1215/postboard/internal/post"
)

// loginRequest はログインリクエストのJSON構造。
type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// createPostRequest は投稿作成リクエストのJSON構造。
type createPostRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description" binding:"required"`
	// Photo は写真のURL。
	Photo string `json:"photo" binding:"required"`
	Body  string `json:"body" binding:"required"`
}

// postResponse は投稿のJSONレスポンス構造。
type postResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Photo       string `json:"photo"`
	Body        string `json:"body"`
	IsFavourite bool   `json:"isFavourite"`
	// CreatedAt は作成日時（RFC 3339、UTC）。
	CreatedAt string `json:"created_at"`
}

func toPostResponse(p post.Post) postResponse {
	return postResponse{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Photo:       p.Photo,
		Body:        p.Body,
		IsFavourite: p.IsFavourite,
		CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// handleLogin はログインを処理し、トークンとユーザー情報を返す。
func (s *Server) handleLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req loginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.respondError(c, auth.ErrMissingFields, "")
			return
		}

		cred, err := s.gate.Login(req.Email, req.Password)
		if err != nil {
			s.respondError(c, err, "An error occurred during login.")
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"message": "Login successful",
			"token":   cred.Token,
			"user":    cred.Identity,
		})
	}
}

// handleList は全投稿を作成日時の降順で返す。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		posts, err := s.store.List(c.Request.Context())
		if err != nil {
			s.respondError(c, err, "Error reading posts")
			return
		}

		responses := make([]postResponse, 0, len(posts))
		for _, p := range posts {
			responses = append(responses, toPostResponse(p))
		}
		c.JSON(http.StatusOK, responses)
	}
}

// handleGetByID はパスパラメータ :id の投稿を返す。
func (s *Server) handleGetByID() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := s.store.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			s.respondError(c, err, "Error reading post")
			return
		}
		c.JSON(http.StatusOK, toPostResponse(p))
	}
}

// handleCreate は投稿を作成する。requireAuthの後段で使用する。
func (s *Server) handleCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createPostRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			s.respondError(c, post.ErrValidation, "")
			return
		}

		p, err := s.store.Create(c.Request.Context(), post.Draft{
			Title:       req.Title,
			Description: req.Description,
			Photo:       req.Photo,
			Body:        req.Body,
		})
		if err != nil {
			s.respondError(c, err, "Error creating post")
			return
		}

		log.Printf("投稿を作成しました: id=%s email=%s", p.ID, c.GetString("email"))
		c.JSON(http.StatusCreated, gin.H{
			"message": "Post added successfully",
			"post":    toPostResponse(p),
		})
	}
}

// handleFavorite はパスパラメータ :id の投稿をお気に入りに登録する。
func (s *Server) handleFavorite() gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := s.store.SetFavorite(c.Request.Context(), c.Param("id"), true)
		if err != nil {
			s.respondError(c, err, "Error updating favorite")
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "Post added to favorites",
			"post":    toPostResponse(p),
		})
	}
}
