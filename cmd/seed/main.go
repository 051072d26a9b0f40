// Command seed fills the database with demo users, posts and comments.
package main

import (
	"context"
	"flag"
	"log"

	"agora/internal/config"
	"agora/internal/database"
	"agora/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 20, "Number of users to create")
	numPosts := flag.Int("posts", 5, "Number of posts per user")
	numComments := flag.Int("comments", 4, "Number of comments per post")
	days := flag.Int("days", 30, "Spread created_at over the last N days")
	blocked := flag.Float64("blocked", 0.1, "Share of comments generated with rude text")
	staff := flag.String("staff", "staff", "Username of an extra staff account (empty to skip)")
	shouldClean := flag.Bool("clean", false, "Clean database before seeding")
	dryRun := flag.Bool("dry-run", false, "Build entities without writing them")
	flag.Parse()

	log.Printf("Target: %d users, %d posts/user, %d comments/post, clean=%v", *numUsers, *numPosts, *numComments, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sum, err := seed.Seed(context.Background(), db, seed.Options{
		Users:           *numUsers,
		PostsPerUser:    *numPosts,
		CommentsPerPost: *numComments,
		MaxDays:         *days,
		BlockedRatio:    *blocked,
		StaffUsername:   *staff,
		ShouldClean:     *shouldClean,
		DryRun:          *dryRun,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d users, %d posts, %d comments (%d blocked). Password for all accounts: %s",
		sum.Users, sum.Posts, sum.Comments, sum.Blocked, seed.DefaultPassword)
}
