package controllers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"outfitapi/models"
	"outfitapi/services"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const feedPageSize = 20

type FeedItem struct {
	OutfitResponse
	OwnerName   string `json:"owner_name"`
	OwnerAvatar string `json:"owner_avatar"`
	LikedByMe   bool   `json:"liked_by_me"`
}

type CommentIn struct {
	Body string `json:"body" validate:"required,max=1000"`
}

type CommentOut struct {
	ID        uint      `json:"id"`
	Body      string    `json:"body"`
	UserID    uint      `json:"user_id"`
	UserName  string    `json:"user_name"`
	CreatedAt time.Time `json:"created_at"`
}

type CommunityController struct {
	Push     services.PushSender
	URLCache services.URLCacheServiceProvider
}

func (controller *CommunityController) FeedRoutes(g *echo.Group) {
	g.GET("", controller.Feed)
	g.POST("/:id/like", controller.Like)
	g.DELETE("/:id/like", controller.Unlike)
	g.GET("/:id/comments", controller.ListComments)
	g.POST("/:id/comments", controller.AddComment)
}

func (controller *CommunityController) UserRoutes(g *echo.Group) {
	g.POST("/:id/follow", controller.Follow)
	g.DELETE("/:id/follow", controller.Unfollow)
}

// notify pushes to recipient in the background. Actions on your own content are silent.
func (controller *CommunityController) notify(recipient, actor uint, title, body string, data map[string]string) {
	if controller.Push == nil || recipient == actor {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := controller.Push.Send(ctx, recipient, title, body, data); err != nil {
			fmt.Printf("[Push] %s to user %d failed: %v\n", data["type"], recipient, err)
		}
	}()
}

func (controller *CommunityController) Feed(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)

	page, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil || page < 1 {
		page = 1
	}
	query := db.Where("is_public = ?", true)
	if c.QueryParam("following") == "true" {
		query = query.Where("owner_id IN (?)", db.Model(&models.UserFollow{}).Select("followee_id").Where("follower_id = ?", user.ID))
	}
	var outfits []models.GeneratedOutfit
	err = query.Preload("Owner").Order("created_at desc, id desc").
		Offset((page - 1) * feedPageSize).Limit(feedPageSize).Find(&outfits).Error
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch feed"})
	}

	ids := make([]uint, len(outfits))
	for i, o := range outfits {
		ids[i] = o.ID
	}
	liked := map[uint]bool{}
	if len(ids) > 0 {
		var likedIDs []uint
		db.Model(&models.OutfitLike{}).Where("user_account_id = ? AND outfit_id IN ?", user.ID, ids).Pluck("outfit_id", &likedIDs)
		for _, id := range likedIDs {
			liked[id] = true
		}
	}

	responses := outfitResponses(c, controller.URLCache, outfits)
	items := make([]FeedItem, len(outfits))
	for i, o := range outfits {
		items[i] = FeedItem{
			OutfitResponse: responses[i],
			OwnerName:      o.Owner.Name,
			OwnerAvatar:    o.Owner.AvatarURL,
			LikedByMe:      liked[o.ID],
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"outfits": items, "page": page})
}

// visibleOutfit loads a public outfit or one of the user's own.
func visibleOutfit(c echo.Context, db *gorm.DB, userID uint) (*models.GeneratedOutfit, error) {
	id, err := pathID(c, "id")
	if err != nil {
		return nil, c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	var o models.GeneratedOutfit
	r := db.Where("id = ? AND (is_public = ? OR owner_id = ?)", id, true, userID).Limit(1).Find(&o)
	if r.Error != nil {
		return nil, c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch outfit"})
	}
	if r.RowsAffected == 0 {
		return nil, c.JSON(http.StatusNotFound, map[string]string{"error": "Outfit not found"})
	}
	return &o, nil
}

func likesCount(db *gorm.DB, outfitID uint) int {
	var count int
	db.Model(&models.GeneratedOutfit{}).Where("id = ?", outfitID).Select("likes_count").Scan(&count)
	return count
}

func (controller *CommunityController) Like(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)
	o, err := visibleOutfit(c, db, user.ID)
	if o == nil {
		return err
	}

	like := models.OutfitLike{OutfitID: o.ID, UserAccountID: user.ID}
	r := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&like)
	if r.Error != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to like outfit"})
	}
	if r.RowsAffected > 0 {
		db.Model(&models.GeneratedOutfit{}).Where("id = ?", o.ID).UpdateColumn("likes_count", gorm.Expr("likes_count + 1"))
		controller.notify(o.OwnerID, user.ID, "New like", fmt.Sprintf("%s liked your outfit %s", user.Name, o.Title), map[string]string{
			"type":      "outfit_liked",
			"outfit_id": fmt.Sprint(o.ID),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"liked": true, "likes_count": likesCount(db, o.ID)})
}

func (controller *CommunityController) Unlike(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)
	o, err := visibleOutfit(c, db, user.ID)
	if o == nil {
		return err
	}
	r := db.Where("outfit_id = ? AND user_account_id = ?", o.ID, user.ID).Delete(&models.OutfitLike{})
	if r.Error != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to unlike outfit"})
	}
	if r.RowsAffected > 0 {
		// the counter never goes below zero
		db.Model(&models.GeneratedOutfit{}).Where("id = ?", o.ID).
			UpdateColumn("likes_count", gorm.Expr("CASE WHEN likes_count > 0 THEN likes_count - 1 ELSE 0 END"))
	}
	return c.JSON(http.StatusOK, echo.Map{"liked": false, "likes_count": likesCount(db, o.ID)})
}

func (controller *CommunityController) ListComments(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)
	o, err := visibleOutfit(c, db, user.ID)
	if o == nil {
		return err
	}
	var comments []models.OutfitComment
	if err := db.Preload("UserAccount").Where("outfit_id = ?", o.ID).Order("created_at asc, id asc").Find(&comments).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to fetch comments"})
	}
	out := make([]CommentOut, len(comments))
	for i, comment := range comments {
		out[i] = CommentOut{
			ID:        comment.ID,
			Body:      comment.Body,
			UserID:    comment.UserAccountID,
			UserName:  comment.UserAccount.Name,
			CreatedAt: comment.CreatedAt,
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"comments": out})
}

func (controller *CommunityController) AddComment(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)
	var req CommentIn
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	req.Body = strings.TrimSpace(req.Body)
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	o, err := visibleOutfit(c, db, user.ID)
	if o == nil {
		return err
	}

	comment := models.OutfitComment{OutfitID: o.ID, UserAccountID: user.ID, Body: req.Body}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("UserAccount").Create(&comment).Error; err != nil {
			return err
		}
		return tx.Model(&models.GeneratedOutfit{}).Where("id = ?", o.ID).UpdateColumn("comments_count", gorm.Expr("comments_count + 1")).Error
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to add comment"})
	}
	controller.notify(o.OwnerID, user.ID, "New comment", fmt.Sprintf("%s: %s", user.Name, truncate(req.Body, 80)), map[string]string{
		"type":      "outfit_commented",
		"outfit_id": fmt.Sprint(o.ID),
	})
	return c.JSON(http.StatusCreated, CommentOut{
		ID:        comment.ID,
		Body:      comment.Body,
		UserID:    user.ID,
		UserName:  user.Name,
		CreatedAt: comment.CreatedAt,
	})
}

func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max-3]) + "..."
}

func (controller *CommunityController) Follow(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)
	targetID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if targetID == user.ID {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "You cannot follow yourself"})
	}
	var target models.UserAccount
	if r := db.Where("id = ? AND banned = ?", targetID, false).Limit(1).Find(&target); r.RowsAffected == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "User not found"})
	}

	follow := models.UserFollow{FollowerID: user.ID, FolloweeID: target.ID}
	r := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&follow)
	if r.Error != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to follow user"})
	}
	if r.RowsAffected > 0 {
		controller.notify(target.ID, user.ID, "New follower", fmt.Sprintf("%s started following you", user.Name), map[string]string{
			"type":    "new_follower",
			"user_id": fmt.Sprint(user.ID),
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"following": true})
}

func (controller *CommunityController) Unfollow(c echo.Context) error {
	user := c.Get("currentUser").(models.UserAccount)
	db := c.Get("__db").(*gorm.DB)
	targetID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err := db.Where("follower_id = ? AND followee_id = ?", user.ID, targetID).Delete(&models.UserFollow{}).Error; err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to unfollow user"})
	}
	return c.JSON(http.StatusOK, echo.Map{"following": false})
}
