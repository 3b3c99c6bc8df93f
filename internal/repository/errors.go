package repository

import "workingonit/backend/internal/model"

var ErrNotFound = model.ErrNotFound
