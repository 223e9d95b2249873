package storage

// StorageClient archives rendered avatar images for figure history.
type StorageClient interface {
	UploadFigure(habboID, figureString string, imageData []byte) (string, error)
}
