package handler

import (
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// maxProfilePictureEdge 是头像最长边的像素上限，超出的按比例缩小
const maxProfilePictureEdge = 512

var allowedPictureExts = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
	".webp": {},
}

// saveProfilePicture 校验并保存头像：uuid 文件名，超大图片降采样后重编码
func (a *API) saveProfilePicture(file *multipart.FileHeader) (string, error) {
	contentType := file.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("unsupported content type %q", contentType)
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if _, ok := allowedPictureExts[ext]; !ok {
		return "", fmt.Errorf("unsupported file extension %q", ext)
	}

	if err := os.MkdirAll(a.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	src, err := file.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	img, _, err := image.Decode(src)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	img = downscale(img)

	// 重编码统一为 png/jpeg，顺带剥离原始文件的元数据
	outExt := ".jpg"
	if ext == ".png" || ext == ".gif" || ext == ".webp" {
		outExt = ".png"
	}

	filename := fmt.Sprintf("profile-%s%s", uuid.New().String(), outExt)
	path := filepath.Join(a.uploadDir, filename)

	out, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	defer out.Close()

	if outExt == ".png" {
		err = png.Encode(out, img)
	} else {
		err = jpeg.Encode(out, img, &jpeg.Options{Quality: 85})
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("encode image: %w", err)
	}

	return filename, nil
}

// downscale 把最长边超限的图片按比例缩小，小图原样返回
func downscale(img image.Image) image.Image {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= maxProfilePictureEdge && height <= maxProfilePictureEdge {
		return img
	}

	ratio := float64(maxProfilePictureEdge) / float64(width)
	if height > width {
		ratio = float64(maxProfilePictureEdge) / float64(height)
	}

	dst := image.NewRGBA(image.Rect(0, 0, int(float64(width)*ratio), int(float64(height)*ratio)))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}

// removeOldProfilePicture 删除用户当前头像文件（若存在），替换前调用
func (a *API) removeOldProfilePicture(userID uint) {
	user, err := a.users.Get(userID)
	if err != nil || user.ProfilePicture == "" {
		return
	}

	path := filepath.Join(a.uploadDir, filepath.Base(user.ProfilePicture))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		a.log.Warn().Err(err).Str("path", path).Msg("failed to remove old profile picture")
	}
}

// ServeUpload 提供头像文件访问，文件名做基名归一防止路径穿越
func (a *API) ServeUpload(c *gin.Context) {
	filename := filepath.Base(c.Param("filename"))
	if filename == "." || filename == "/" {
		respondError(c, http.StatusBadRequest, "Invalid filename")
		return
	}

	path := filepath.Join(a.uploadDir, filename)
	if _, err := os.Stat(path); err != nil {
		respondError(c, http.StatusNotFound, "File not found")
		return
	}

	c.File(path)
}
