package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/leafsense/leafsense_server/config"
	"github.com/leafsense/leafsense_server/internal/model"
)

var (
	dryRun        = flag.Bool("dry-run", true, "Dry run mode, don't actually delete files")
	keepDays      = flag.Int("keep-days", 7, "Days to keep local copies of images migrated to OSS")
	cleanOrphans  = flag.Bool("clean-orphans", true, "Clean image dirs whose analysis was deleted")
	cleanMigrated = flag.Bool("clean-migrated", true, "Clean local copies of images migrated to OSS")
)

func main() {
	flag.Parse()

	log.Println("🧹 Starting cleanup task...")
	log.Printf("Mode: dry-run=%v", *dryRun)

	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 连接数据库
	db, err := connectDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	imageDir := filepath.Join(cfg.Upload.LocalDir, "leaf_images")
	totalSize := int64(0)
	totalFiles := 0
	deletedSize := int64(0)
	deletedDirs := 0

	// 1. 清理分析记录已删除的孤儿图片目录
	if *cleanOrphans {
		log.Println("\n📦 Cleaning image dirs of deleted analyses...")
		size, count := cleanOrphanDirs(db, imageDir, *dryRun)
		deletedSize += size
		deletedDirs += count
	}

	// 2. 清理已迁移到 OSS 的本地图片副本
	if *cleanMigrated {
		log.Printf("\n📊 Cleaning local copies migrated to OSS (older than %d days)...", *keepDays)
		size, count := cleanMigratedDirs(db, imageDir, *keepDays, *dryRun)
		deletedSize += size
		deletedDirs += count
	}

	// 3. 统计当前占用
	log.Println("\n📈 Scanning current disk usage...")
	filepath.Walk(imageDir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			totalSize += info.Size()
			totalFiles++
		}
		return nil
	})

	// 输出统计
	log.Println("\n" + strings.Repeat("=", 60))
	log.Println("📊 Cleanup Summary")
	log.Println(strings.Repeat("=", 60))
	log.Printf("Total files: %d", totalFiles)
	log.Printf("Total size: %s", formatSize(totalSize))
	log.Printf("Deleted dirs: %d", deletedDirs)
	log.Printf("Freed space: %s", formatSize(deletedSize))
	if *dryRun {
		log.Println("\n⚠️  DRY RUN MODE - No files were actually deleted")
		log.Println("   Run with -dry-run=false to actually delete files")
	} else {
		log.Println("\n✅ Cleanup completed!")
	}
	log.Println(strings.Repeat("=", 60))
}

// cleanOrphanDirs 删除对应分析记录已不存在的图片目录
func cleanOrphanDirs(db *gorm.DB, imageDir string, dryRun bool) (int64, int) {
	var totalSize int64
	var count int

	entries, err := os.ReadDir(imageDir)
	if err != nil {
		log.Printf("Failed to read image dir: %v", err)
		return 0, 0
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		// 目录名即分析 ID
		analysisID, err := strconv.ParseInt(entry.Name(), 10, 64)
		if err != nil {
			continue
		}

		var exists int64
		if err := db.Model(&model.Analysis{}).Where("id = ?", analysisID).Count(&exists).Error; err != nil {
			log.Printf("  ⚠️  Failed to query analysis %d: %v", analysisID, err)
			continue
		}
		if exists > 0 {
			continue
		}

		dirPath := filepath.Join(imageDir, entry.Name())
		size := getDirSize(dirPath)
		totalSize += size

		log.Printf("  - %s (%.2f MB, analysis deleted)", entry.Name(), float64(size)/1024/1024)

		if !dryRun {
			if err := os.RemoveAll(dirPath); err != nil {
				log.Printf("    ❌ Failed to delete: %v", err)
			} else {
				count++
			}
		} else {
			count++
		}
	}

	log.Printf("Found %d orphan image directories (total: %s)", count, formatSize(totalSize))

	return totalSize, count
}

// cleanMigratedDirs 删除图片已全部迁移到 OSS 的本地目录
func cleanMigratedDirs(db *gorm.DB, imageDir string, keepDays int, dryRun bool) (int64, int) {
	var totalSize int64
	var count int

	// 获取所有图片 URL 已指向 OSS 的分析记录
	var analysisIDs []int64
	err := db.Model(&model.ImageResult{}).
		Where("image_url LIKE ?", "https://%").
		Distinct("analysis_id").
		Pluck("analysis_id", &analysisIDs).Error
	if err != nil {
		log.Printf("Failed to query image results: %v", err)
		return 0, 0
	}

	log.Printf("Found %d analyses with images on OSS", len(analysisIDs))

	// 为了安全，只删除超过 N 天的旧目录
	expireTime := time.Now().Add(-time.Duration(keepDays) * 24 * time.Hour)

	for _, analysisID := range analysisIDs {
		// 仍有本地 URL 的不动
		var localCount int64
		err := db.Model(&model.ImageResult{}).
			Where("analysis_id = ? AND image_url NOT LIKE ?", analysisID, "https://%").
			Count(&localCount).Error
		if err != nil || localCount > 0 {
			continue
		}

		dirPath := filepath.Join(imageDir, fmt.Sprintf("%d", analysisID))
		info, err := os.Stat(dirPath)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			log.Printf("  ⚠️  Failed to stat dir %d: %v", analysisID, err)
			continue
		}

		if info.ModTime().Before(expireTime) {
			size := getDirSize(dirPath)
			totalSize += size

			log.Printf("  - %d (%.2f MB, migrated to OSS, %s old)",
				analysisID,
				float64(size)/1024/1024,
				time.Since(info.ModTime()).Round(time.Hour))

			if !dryRun {
				if err := os.RemoveAll(dirPath); err != nil {
					log.Printf("    ❌ Failed to delete: %v", err)
				} else {
					count++
				}
			} else {
				count++
			}
		}
	}

	log.Printf("Found %d migrated image directories to clean (total: %s)", count, formatSize(totalSize))

	return totalSize, count
}

// getDirSize 计算目录大小
func getDirSize(path string) int64 {
	var size int64
	filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}

// formatSize 格式化文件大小
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// connectDB 连接数据库
func connectDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database,
	)

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	return db, nil
}
