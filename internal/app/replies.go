package app

import "fmt"

const (
	replyDownloading    = "Downloading the file, please wait..."
	replyDownloadFailed = "Failed to download the file."
	replyRejected       = "Please send a valid MegaUp direct download link."
)

func greeting(up Uploader) string {
	if up == nil {
		return "Hello! I am a bot that can download files from MegaUp links. Just send me a MegaUp direct download link."
	}
	return fmt.Sprintf("Hello! I am a bot that can download files from MegaUp links and upload them to %s. Just send me a MegaUp direct download link.", up.Name())
}

func replyDownloaded(fileName string) string {
	return fmt.Sprintf("File downloaded successfully: %s", fileName)
}

func replyUploading(backend string) string {
	return fmt.Sprintf("File downloaded successfully! Uploading to %s...", backend)
}

func replyUploaded(backend, link string) string {
	return fmt.Sprintf("File uploaded to %s: %s", backend, link)
}

func replyUploadFailed(backend string) string {
	return fmt.Sprintf("Failed to upload to %s.", backend)
}

func replyError(err error) string {
	return "Error: " + err.Error()
}
