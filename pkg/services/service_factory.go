package services

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// ServiceFactory provides a centralized way to create and manage the image,
// filesystem and journal services
type ServiceFactory struct {
	imageService      ImageService
	filesystemService FilesystemService
	journalService    JournalService
	logger            logrus.FieldLogger
	mu                sync.RWMutex
	initialized       bool
}

// NewServiceFactory creates a new service factory instance
func NewServiceFactory() *ServiceFactory {
	return &ServiceFactory{}
}

// SetLogger sets the logger handed to services created afterwards
func (sf *ServiceFactory) SetLogger(logger logrus.FieldLogger) {
	sf.mu.Lock()
	defer sf.mu.Unlock()
	sf.logger = logger
}

// Initialize initializes all services with their dependencies
func (sf *ServiceFactory) Initialize() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	if sf.initialized {
		return nil
	}

	// The image service owns every open handle
	sf.imageService = NewImageService(sf.logger)
	sf.filesystemService = NewFilesystemService(sf.imageService)
	sf.journalService = NewJournalService(sf.imageService)

	sf.initialized = true
	return nil
}

func (sf *ServiceFactory) ensureInitialized() error {
	sf.mu.RLock()
	ok := sf.initialized
	sf.mu.RUnlock()
	if ok {
		return nil
	}
	return sf.Initialize()
}

// ImageService returns the image service instance
func (sf *ServiceFactory) ImageService() (ImageService, error) {
	if err := sf.ensureInitialized(); err != nil {
		return nil, err
	}
	sf.mu.RLock()
	defer sf.mu.RUnlock()
	if sf.imageService == nil {
		return nil, ErrServiceNotAvailable
	}
	return sf.imageService, nil
}

// FilesystemService returns the filesystem service instance
func (sf *ServiceFactory) FilesystemService() (FilesystemService, error) {
	if err := sf.ensureInitialized(); err != nil {
		return nil, err
	}
	sf.mu.RLock()
	defer sf.mu.RUnlock()
	if sf.filesystemService == nil {
		return nil, ErrServiceNotAvailable
	}
	return sf.filesystemService, nil
}

// JournalService returns the journal service instance
func (sf *ServiceFactory) JournalService() (JournalService, error) {
	if err := sf.ensureInitialized(); err != nil {
		return nil, err
	}
	sf.mu.RLock()
	defer sf.mu.RUnlock()
	if sf.journalService == nil {
		return nil, ErrServiceNotAvailable
	}
	return sf.journalService, nil
}

// Shutdown closes every open image and resets the services
func (sf *ServiceFactory) Shutdown() error {
	sf.mu.Lock()
	defer sf.mu.Unlock()

	if !sf.initialized {
		return nil
	}

	if sf.imageService != nil {
		if err := sf.imageService.Close(); err != nil {
			return err
		}
	}

	sf.imageService = nil
	sf.filesystemService = nil
	sf.journalService = nil
	sf.initialized = false

	return nil
}

// IsInitialized returns whether the factory has been initialized
func (sf *ServiceFactory) IsInitialized() bool {
	sf.mu.RLock()
	defer sf.mu.RUnlock()
	return sf.initialized
}

// Common errors
var (
	ErrServiceNotAvailable = fmt.Errorf("service not available")
)

// DefaultServiceFactory is the default global service factory instance
var DefaultServiceFactory = NewServiceFactory()

// Convenience functions for accessing services through the default factory

// GetImageService returns the default image service
func GetImageService() (ImageService, error) {
	return DefaultServiceFactory.ImageService()
}

// GetFilesystemService returns the default filesystem service
func GetFilesystemService() (FilesystemService, error) {
	return DefaultServiceFactory.FilesystemService()
}

// GetJournalService returns the default journal service
func GetJournalService() (JournalService, error) {
	return DefaultServiceFactory.JournalService()
}
